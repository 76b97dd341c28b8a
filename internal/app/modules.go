package app

import (
	"github.com/vk/nodeweave/internal/registry"
	"github.com/vk/nodeweave/modules/compositor"
	"github.com/vk/nodeweave/modules/core"
	"github.com/vk/nodeweave/modules/shader"
	"github.com/vk/nodeweave/modules/texture"
)

// coreModules is the definitive list of all node modules compiled into the
// nodeweave binary.
var coreModules = []registry.Module{
	&core.Module{},
	&shader.Module{},
	&compositor.Module{},
	&texture.Module{},
}
