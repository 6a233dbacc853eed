package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/folio/internal/content"
	"github.com/KaramelBytes/folio/internal/server"
	"github.com/KaramelBytes/folio/internal/utils"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the content API, feeds and contact endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			c.ListenAddr = serveAddr
		}
		log := newLogger(c)
		defer func() { _ = log.Sync() }()

		if !utils.DirExists(c.ContentDir) {
			log.Warn("content directory not found; listings will be empty", zap.String("dir", c.ContentDir))
		}
		store := newStore(c, log)
		gate, closeGate, err := newGate(c, log)
		if err != nil {
			return err
		}
		defer func() { _ = closeGate() }()

		srv, err := server.New(server.Deps{
			Config:   c,
			Store:    store,
			Renderer: content.NewRenderer(),
			Gate:     gate,
			Logger:   log,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveWatch && utils.DirExists(c.ContentDir) {
			go func() {
				err := content.Watch(ctx, c.ContentDir, 300*time.Millisecond, log, func() {
					rescan(store, log)
				})
				if err != nil {
					log.Error("content watcher stopped", zap.Error(err))
				}
			}()
		}
		return srv.Start(ctx, c.ListenAddr)
	},
}

// rescan re-reads every locale and logs what changed in the content tree.
func rescan(store *content.Store, log *zap.Logger) {
	for _, loc := range store.Locales() {
		docs, diags := store.Scan(loc)
		log.Info("content rescanned", zap.String("locale", loc), zap.Int("documents", len(docs)), zap.Int("diagnostics", len(diags)))
		for _, d := range diags {
			log.Warn("content diagnostic", zap.Stringer("diagnostic", d))
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch the content directory and log diagnostics on change")
}
