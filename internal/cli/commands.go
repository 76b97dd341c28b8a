package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vk/nodeweave/internal/app"
	"github.com/vk/nodeweave/internal/document"
	"github.com/vk/nodeweave/internal/graph"
	"github.com/vk/nodeweave/internal/library"
	"github.com/vk/nodeweave/internal/nodeid"
	"github.com/vk/nodeweave/internal/registry"
)

func newCheckCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>...",
		Short: "Load documents and report their trees",
		Long: `Check loads every document below the given paths against the node type
catalogs and prints one line per tree. Nodes whose type is not registered
are counted as unknown; they load as placeholders and are kept on export.`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			entries, err := a.LoadDocuments(args...)
			if err != nil {
				return err
			}
			printTrees(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

func printTrees(w io.Writer, entries []*library.Entry) {
	for _, e := range entries {
		tr := e.Tree
		unknown := 0
		for _, h := range tr.Nodes() {
			if info, ok := tr.Node(h); ok && info.Unknown {
				unknown++
			}
		}
		fmt.Fprintf(w, "%-24s %-12s nodes=%d links=%d unknown=%d\n", tr.Name(), tr.Kind(), tr.NodeCount(), tr.LinkCount(), unknown)
	}
}

func newEvalCommand(o *options) *cobra.Command {
	var trees, show []string
	var outputs bool
	cmd := &cobra.Command{
		Use:   "eval <path>...",
		Short: "Evaluate documents",
		Long: `Eval loads documents and runs one evaluation pass over every tree, or the
trees named with --tree and the trees they instance. Wrapped trees are
evaluated before their users. --show prints single values addressed as
tree/node or tree/node/socket.`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := make([]*nodeid.Address, 0, len(show))
			for _, raw := range show {
				addr, err := nodeid.Parse(raw)
				if err != nil {
					return usageError{err}
				}
				addrs = append(addrs, addr)
			}
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if _, err := a.LoadDocuments(args...); err != nil {
				return err
			}
			results, evalErr := a.Evaluate(cmd.Context(), trees...)
			w := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(w, "%-24s evaluated=%d cleaned=%d failed=%d skipped=%d %v\n",
					res.Tree, res.Evaluated, res.Cleaned, len(res.Failures), len(res.Skipped), res.Duration)
				if outputs {
					if err := printOutputs(w, a, res.Tree); err != nil {
						return err
					}
				}
			}
			for _, addr := range addrs {
				values, err := a.Output(addr)
				if err != nil {
					return err
				}
				for _, id := range sortedKeys(values) {
					fmt.Fprintf(w, "%s/%s/%s = %s\n", addr.Tree, addr.Node, id, values[id])
				}
			}
			return evalErr
		},
	}
	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Evaluate only the named trees.")
	cmd.Flags().StringArrayVar(&show, "show", nil, "Print the value at tree/node[/socket]. May be repeated.")
	cmd.Flags().BoolVar(&outputs, "outputs", false, "Print the derived outputs of every node.")
	return cmd
}

func printOutputs(w io.Writer, a *app.App, tree string) error {
	out, err := a.Outputs(tree)
	if err != nil {
		return err
	}
	for _, node := range sortedKeys(out) {
		for _, id := range sortedKeys(out[node]) {
			fmt.Fprintf(w, "  %s.%s = %s\n", node, id, out[node][id])
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func newFmtCommand(o *options) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <file>...",
		Short: "Rewrite documents in canonical form",
		Long: `Fmt decodes each document and encodes it again. Without --write the
canonical form is printed. Documents may instance trees declared in the
other files of the same call.`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if _, err := a.LoadDocuments(args...); err != nil {
				return err
			}
			for _, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				canonical, err := canonicalForm(a, path, src)
				if err != nil {
					return err
				}
				if !write {
					cmd.OutOrStdout().Write(canonical)
					continue
				}
				if string(canonical) == string(src) {
					continue
				}
				if err := os.WriteFile(path, canonical, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the source file.")
	return cmd
}

// canonicalForm re-encodes the trees a document declares, in document order.
func canonicalForm(a *app.App, filename string, src []byte) ([]byte, error) {
	names, err := treeNames(a.Registry(), filename, src, a.Library())
	if err != nil {
		return nil, err
	}
	trees := make([]*graph.Tree, 0, len(names))
	for _, name := range names {
		e, ok := a.Library().Get(name)
		if !ok {
			return nil, fmt.Errorf("tree %q of %s was not loaded", name, filename)
		}
		trees = append(trees, e.Tree)
	}
	return document.Encode(trees...), nil
}

// treeNames decodes a document a second time to learn which trees it
// declares. The decoded copies are released straight away.
func treeNames(reg *registry.Registry, filename string, src []byte, lib *library.Library) ([]string, error) {
	trees, err := document.Decode(context.Background(), reg, filename, src, document.WithResolver(func(name string) (*graph.Tree, bool) {
		if e, ok := lib.Get(name); ok {
			return e.Tree, true
		}
		return nil, false
	}))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(trees))
	for _, tr := range trees {
		names = append(names, tr.Name())
		for _, h := range tr.Nodes() {
			if _, ok := tr.GroupTree(h); ok {
				_ = tr.SetGroupTree(h, nil)
			}
		}
	}
	return names, nil
}

func newExportCommand(o *options) *cobra.Command {
	var format string
	var trees []string
	cmd := &cobra.Command{
		Use:   "export <path>...",
		Short: "Export trees as HCL or YAML",
		Long: `Export loads documents and writes the selected trees, with the trees they
instance, as one document. YAML output is for reading and diffing only.
With --db and no paths the trees come from the block store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "hcl" && format != "yaml" {
				return usageError{fmt.Errorf("invalid format %q: must be 'hcl' or 'yaml'", format)}
			}
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if err := load(cmd.Context(), a, o, args); err != nil {
				return err
			}
			return export(cmd.OutOrStdout(), a, format, trees)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "hcl", "Output format. Options: 'hcl' or 'yaml'.")
	cmd.Flags().StringSliceVar(&trees, "tree", nil, "Export only the named trees.")
	return cmd
}

// load fills the library from paths, or from the block store when no path
// is given.
func load(ctx context.Context, a *app.App, o *options, paths []string) error {
	if len(paths) > 0 {
		_, err := a.LoadDocuments(paths...)
		return err
	}
	if o.db == "" {
		return usageError{fmt.Errorf("no documents given and no --db configured")}
	}
	_, err := a.LoadStore(ctx)
	return err
}

func export(w io.Writer, a *app.App, format string, names []string) error {
	trees, err := a.Library().Closure(names...)
	if err != nil {
		return err
	}
	if format == "yaml" {
		out, err := document.ExportYAML(trees...)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	_, err = w.Write(document.Encode(trees...))
	return err
}

func newTypesCommand(o *options) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered node types",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, nt := range a.Registry().NodeTypes() {
				if kind != "" && !nt.Polls(kind) {
					continue
				}
				kinds := "*"
				if len(nt.TreeKinds) > 0 {
					kinds = strings.Join(slices.Sorted(slices.Values(nt.TreeKinds)), ",")
				}
				fmt.Fprintf(w, "%-28s %-20s %-28s %s\n", nt.ID, nt.Label, kinds, nt.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list types allowed in this tree kind.")
	return cmd
}

func newStoreCommand(o *options) *cobra.Command {
	store := &cobra.Command{
		Use:   "store",
		Short: "Save and load trees through the block store",
	}
	save := &cobra.Command{
		Use:   "save <path>...",
		Short: "Save documents into the block store",
		Long: `Save makes the block store hold exactly the trees of the given documents.
Blocks whose tree did not change are left alone; blocks of trees that are
no longer present are deleted.`,
		Args:  checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if _, err := a.LoadDocuments(args...); err != nil {
				return err
			}
			stats, err := a.SaveStore(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written=%d unchanged=%d deleted=%d\n", stats.Written, stats.Unchanged, stats.Deleted)
			return nil
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the trees in the block store",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if _, err := a.LoadStore(cmd.Context()); err != nil {
				return err
			}
			printTrees(cmd.OutOrStdout(), a.Library().Entries())
			return nil
		},
	}
	store.AddCommand(save, list)
	return store
}

func newServeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [path]...",
		Short: "Keep trees evaluated while they are edited",
		Long: `Serve loads documents, or the block store when no path is given, and
re-evaluates trees after every edit until interrupted. The health check
and metrics endpoints run on --healthcheck-port; with --editor-url tree
events are streamed to the editor, which may tag trees for update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newApp()
			if err != nil {
				return err
			}
			if err := load(cmd.Context(), a, o, args); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}
