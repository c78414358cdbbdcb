package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/userdash/internal/api"
	"github.com/charlesng35/userdash/internal/cache"
	"github.com/charlesng35/userdash/internal/dashboard"
	"github.com/charlesng35/userdash/internal/models"
	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

const usersHelp = `Commands: /text search, / clear search, n next, p previous, g N go to page, r refresh, q quit`

var errSessionExpired = appErrors.ErrUnauthorized.WithMessage("session expired; run `userdash login`")

type usersOptions struct {
	Search string
	Page   int
	Once   bool
}

func newUsersCommand(root *rootOptions) *cobra.Command {
	var opts usersOptions

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Browse users page by page",
		Long: `Shows the user directory one page at a time. Commands are read from
standard input, one per line:

  /text   search for users whose name or email starts with text
  /       clear the search
  n, p    next and previous page
  g N     go to page N
  r       refresh the current page
  q       quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withRuntime(cmd, func(stack *runtimeStack) error {
				return runUsers(cmd, stack, opts)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.Search, "search", "s", "", "initial search text")
	fs.IntVar(&opts.Page, "page", 1, "initial page")
	fs.BoolVar(&opts.Once, "once", false, "print the first page and exit")

	return cmd
}

func runUsers(cmd *cobra.Command, stack *runtimeStack, opts usersOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !stack.Sessions.IsAuthenticated() {
		return errNotSignedIn
	}

	d, err := dashboard.Mount(ctx, stack.Sessions, stack.Cache, stack.Config.Dashboard.DashboardConfig())
	if err != nil {
		if errors.Is(err, appErrors.ErrUnauthorized) {
			return errNotSignedIn
		}
		return err
	}
	defer d.Close()

	if err := stack.startBackground(api.Dependencies{
		Cache:   stack.Cache,
		Views:   func() (dashboard.View, bool) { return d.View(), true },
		Session: stack.Sessions,
	}); err != nil {
		return err
	}

	if opts.Search != "" {
		if err := d.SetSearch(opts.Search); err != nil {
			return err
		}
		d.FlushSearch()
	}
	if opts.Page > 1 {
		// The page count is only known once the first page has loaded.
		if _, err := waitSettled(ctx, d); err != nil {
			return err
		}
		if err := d.SetPage(opts.Page); err != nil {
			return err
		}
	}

	profile := stack.profile(ctx)

	if opts.Once {
		v, err := waitSettled(ctx, d)
		if err != nil {
			return err
		}
		renderView(out, v, profile)
		if v.Err != nil && (len(v.Rows) == 0 || v.IsPlaceholder) {
			return viewError(v)
		}
		return nil
	}

	fmt.Fprintln(out, usersHelp)
	return repl(ctx, d, cmd.InOrStdin(), out, profile)
}

// repl renders settled views and applies commands read from in until q, EOF
// or cancellation.
func repl(ctx context.Context, d *dashboard.Dashboard, in io.Reader, out io.Writer, profile *models.Profile) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-d.Done():
				return
			}
		}
	}()

	var last string
	show := func(v dashboard.View) error {
		if !isSettled(v) {
			return nil
		}
		if fp := fingerprint(v); fp != last {
			last = fp
			renderView(out, v, profile)
		}
		if v.Err != nil && errors.Is(v.Err, appErrors.ErrUnauthorized) {
			return errSessionExpired
		}
		return nil
	}

	if err := show(d.View()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-d.Updates():
			if err := show(v); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := applyCommand(d, line)
			if err != nil {
				fmt.Fprintln(out, err)
			}
			if quit {
				return nil
			}
		}
	}
}

// applyCommand interprets one input line.
func applyCommand(d *dashboard.Dashboard, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case line == "q" || line == "quit":
		return true, nil
	case strings.HasPrefix(line, "/"):
		return false, d.SetSearch(strings.TrimPrefix(line, "/"))
	case strings.HasPrefix(line, "s "):
		return false, d.SetSearch(strings.TrimPrefix(line, "s "))
	case line == "n":
		return false, d.Next()
	case line == "p":
		return false, d.Prev()
	case line == "r":
		return false, d.Refresh()
	case strings.HasPrefix(line, "g "):
		n, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "g ")))
		if convErr != nil {
			return false, fmt.Errorf("invalid page %q", strings.TrimPrefix(line, "g "))
		}
		return false, d.SetPage(n)
	default:
		return false, errors.New(usersHelp)
	}
}

// waitSettled blocks until the current query has finished loading.
func waitSettled(ctx context.Context, d *dashboard.Dashboard) (dashboard.View, error) {
	v := d.View()
	for !isSettled(v) {
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-d.Done():
			return v, dashboard.ErrClosed
		case v = <-d.Updates():
		}
		v = d.View()
	}
	return v, nil
}

// isSettled reports whether v shows the outcome of the current query. A failed
// page or search keeps the previous rows as a placeholder but is still settled.
func isSettled(v dashboard.View) bool {
	if v.SearchPending || v.IsFetching {
		return false
	}
	if v.Status == cache.StatusError {
		return true
	}
	return !v.IsLoading && !v.IsPlaceholder && v.Status == cache.StatusSuccess
}

// fingerprint identifies what a rendered view shows, so identical snapshots are
// not printed twice.
func fingerprint(v dashboard.View) string {
	errMsg := ""
	if v.Err != nil {
		errMsg = v.Err.Message
	}
	return fmt.Sprintf("%s|%d|%s|%d|%s", v.Key(), v.TotalPages, v.UpdatedAt, len(v.Rows), errMsg)
}

func viewError(v dashboard.View) error {
	if errors.Is(v.Err, appErrors.ErrUnauthorized) {
		return errSessionExpired
	}
	return v.Err
}

// profile returns the signed-in user for the screen header, asking the API when
// the saved session does not carry it.
func (s *runtimeStack) profile(ctx context.Context) *models.Profile {
	if current := s.Sessions.Current(); current != nil && current.User != nil {
		return current.User
	}
	p, err := s.Client.Profile(ctx)
	if err != nil {
		s.log.Warn("profile unavailable", zap.Error(err))
		return nil
	}
	return p
}
