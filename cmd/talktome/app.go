package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"talktome/internal/cache"
	"talktome/internal/config"
	"talktome/internal/database/boltstore"
	"talktome/internal/database/redisstore"
	"talktome/internal/metrics"
	"talktome/internal/moderation"
	"talktome/internal/models"
	"talktome/internal/notify"
	"talktome/internal/realtime"
	"talktome/internal/remote"
	"talktome/internal/session"
	"talktome/internal/thread"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var errUsage = errors.New("usage")

// app holds the wired dependencies for one command invocation.
type app struct {
	cfg       config.Config
	db        *boltstore.Store
	redis     *redisstore.Store
	feed      *realtime.Client
	remote    *remote.Client
	directory *moderation.Directory
	sessions  *session.Static
	view      *thread.View
}

func newApp(cfg config.Config) (*app, error) {
	db, err := boltstore.Open(boltstore.Options{Path: cfg.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DBPath, err)
	}
	log.Info().Str("path", cfg.DBPath).Msg("Database opened")

	a := &app{cfg: cfg, db: db}

	var kv cache.KeyValueStore = db.CacheStore()
	if cfg.RedisURL != "" {
		a.redis, err = redisstore.Connect(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.RedisPrefix != "" {
			a.redis.WithPrefix(cfg.RedisPrefix)
		}
		kv = a.redis
		log.Info().Msg("Using Redis comment cache")
	}

	a.directory, err = moderation.NewDirectory(cfg.ModeratorsFile, cfg.AdminEmails...)
	if err != nil {
		a.Close()
		return nil, err
	}
	if !a.directory.IsEnabled() {
		log.Warn().Msg("No administrators configured, pending comments cannot be moderated")
	}

	var user *session.User
	if cfg.UserID != "" {
		user = &session.User{ID: cfg.UserID, Email: cfg.UserEmail}
		log.Info().Str("user_id", user.ID).Str("avatar", user.AvatarURL()).Msg("Signed in")
	}
	a.sessions = session.NewStatic(a.directory, user)

	a.remote = remote.New(remote.Options{BaseURL: cfg.RemoteURL, APIKey: cfg.APIKey})
	a.remote.SetAccessToken(cfg.AccessToken)

	feedCfg := realtime.DefaultConfig(cfg.FeedEndpoint(), cfg.APIKey)
	feedCfg.Compress = cfg.FeedCompress
	a.feed, err = realtime.NewClient(feedCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := thread.NewStore(a.remote, cache.New(kv))
	workflow := moderation.NewWorkflow(a.remote, db.AuditStore())
	a.view = thread.NewView(store, a.feed, a.remote, a.sessions, notify.Log{}, workflow)

	return a, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.view != nil {
		a.view.Unmount()
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "watch":
		if len(args) != 1 {
			return errUsage
		}
		return a.watch(ctx, args[0], out)
	case "list":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		page := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return errUsage
			}
			page = n
		}
		return a.list(ctx, args[0], page, out)
	case "submit":
		if len(args) != 2 {
			return errUsage
		}
		return a.withPost(ctx, args[0], func() error {
			return a.view.Submit(ctx, args[1])
		})
	case "approve", "reject":
		if len(args) != 2 {
			return errUsage
		}
		return a.withPost(ctx, args[0], func() error {
			if command == "approve" {
				return a.view.Approve(ctx, args[1])
			}
			return a.view.Reject(ctx, args[1])
		})
	case "audit":
		limit := 20
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return errUsage
			}
			limit = n
		}
		return a.audit(ctx, limit, out)
	case "admins":
		if len(args) != 0 {
			return errUsage
		}
		for _, email := range a.directory.ListAdmins() {
			fmt.Fprintln(out, email)
		}
		return nil
	}
	return errUsage
}

// withPost mounts postID, runs fn and unmounts. Live updates are optional
// for one-shot commands; only a failed load is fatal.
func (a *app) withPost(ctx context.Context, postID string, fn func() error) error {
	if err := a.view.Mount(ctx, postID); err != nil {
		if loadErr := a.view.Store().Err(); loadErr != nil {
			return loadErr
		}
		log.Warn().Err(err).Msg("Continuing without live updates")
	}
	defer a.view.Unmount()
	return fn()
}

func (a *app) list(ctx context.Context, postID string, page int, out io.Writer) error {
	return a.withPost(ctx, postID, func() error {
		printPage(out, a.view.Page(page))
		return nil
	})
}

func (a *app) watch(ctx context.Context, postID string, out io.Writer) error {
	store := a.view.Store()
	store.OnChange(func() {
		if store.Loading() {
			return
		}
		visible := a.view.Visible()
		log.Info().Str("post_id", postID).Int("visible", len(visible)).Int("total", store.Len()).Msg("Comments changed")
	})

	if err := a.view.Mount(ctx, postID); err != nil {
		log.Warn().Err(err).Str("post_id", postID).Msg("Mounted with errors")
	}
	printPage(out, a.view.Page(1))

	g, gCtx := errgroup.WithContext(ctx)

	stats := metrics.StatsSource{
		WorkingSetCount: store.Len,
		VisibleCount:    func() int { return len(a.view.Visible()) },
		FeedConnected:   a.feed.IsConnected,
		FeedStats:       a.feed.Stats,
	}
	if a.redis == nil {
		stats.CacheEntries = a.db.CacheStore().Count
	}
	metrics.StartCollector(gCtx, stats, 15*time.Second)

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("address", a.cfg.MetricsAddr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.view.Unmount()
		return nil
	})

	return g.Wait()
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (a *app) audit(ctx context.Context, limit int, out io.Writer) error {
	entries, err := a.db.AuditStore().ListAuditLog(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-7s  comment=%s post=%s by=%s\n",
			e.Timestamp.Format(time.RFC3339), e.Action, e.CommentID, e.PostID, e.ActorID)
	}
	return nil
}

func printPage(out io.Writer, page thread.Page) {
	for _, c := range page.Comments {
		fmt.Fprintf(out, "%s  [%s]  %s  %s\n", c.CreatedAt.Format(time.RFC3339), c.Status, authorName(c), c.Content)
		if url := c.Author.AvatarURL(); url != "" {
			fmt.Fprintf(out, "    avatar: %s\n", url)
		}
	}
	if page.HasMore {
		fmt.Fprintf(out, "-- %d of %d shown, next page: %d\n", len(page.Comments), page.Total, page.NextPage)
	}
}

func authorName(c models.Comment) string {
	if c.Author != nil {
		if name, ok := c.Author.Metadata["full_name"].(string); ok && name != "" {
			return name
		}
		if c.Author.Email != "" {
			return c.Author.Email
		}
	}
	return c.AuthorID
}
