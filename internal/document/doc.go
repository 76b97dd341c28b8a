// Package document persists node trees.
//
// # Format
//
// A document is an HCL file holding one or more `tree` blocks. Each tree
// lists its interface sockets, its nodes and the links between them:
//
//	tree "Material" {
//	  kind = "shader"
//
//	  interface_input "Socket_0" {
//	    name = "Roughness"
//	    type = "float"
//	  }
//
//	  node "Math" {
//	    type     = "ShaderNodeMath"
//	    location = [120, 40]
//	    params = {
//	      operation = "MULTIPLY"
//	    }
//	    input "Value_001" {
//	      type    = "float"
//	      default = 2
//	    }
//	  }
//
//	  link {
//	    from_node   = "Value"
//	    from_socket = "Value"
//	    to_node     = "Math"
//	    to_socket   = "Value"
//	  }
//	}
//
// Node types are recorded by their stable string id and group nodes name
// the tree they wrap with a `group` attribute. Links refer to nodes by name
// and to sockets by identifier.
//
// # Unknown Node Types
//
// A node whose type is not registered loads as a placeholder that keeps
// every raw field of its block. Its links are restored as they were saved
// but no new link to it is accepted. Encoding a placeholder writes the raw
// fields back unchanged, so documents survive a round trip through a
// process that lacks some node types.
//
// # Other Outputs
//
// ExportYAML renders the same content as YAML for tools that do not read
// HCL. Fingerprint hashes the HCL encoding with BLAKE3; the block store
// uses it to skip unchanged trees.
package document
