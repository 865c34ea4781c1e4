package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/himu-me/notepress/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags

	out io.Writer
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, b.BuildFlags)
	if err != nil {
		return err
	}
	rt := newSession(cfg, g.Logger)
	defer rt.close()

	report, err := rt.run(g.Context, cfg, b.Clean)
	if report != nil {
		b.printSummary(report)
	}
	return err
}

func (b *BuildCmd) printSummary(r *build.Report) {
	w := b.out
	if w == nil {
		w = os.Stdout
	}
	mode := "full"
	if r.Incremental {
		mode = "incremental"
	}
	fmt.Fprintf(w, "Build %s (%s): %d documents, %d rendered, %d reused in %s\n",
		r.Outcome, mode, r.Documents, r.Rendered, r.Reused, r.Duration().Round(time.Millisecond))

	reasons := make([]string, 0, len(r.Reasons))
	for k := range r.Reasons {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(w, "  %-16s %d\n", k, r.Reasons[k])
	}
	for _, bl := range r.BrokenLinks {
		fmt.Fprintf(w, "  broken link %s -> %s\n", bl.Page, bl.URL)
	}
}
