package commands

import (
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/handlers"
	"github.com/fenilmodi00/nuri-bid-crawler/jobs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveEvery *time.Duration
	serveDaily *string
)

func init() {
	serveEvery = serveCmd.Flags().Duration("every", 0, "Also crawl on a fixed interval, e.g. 8h.")
	serveDaily = serveCmd.Flags().String("daily", "", "Also crawl at fixed times of day, e.g. 09:00,18:00.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the bid API and accepts crawl triggers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		job := newCrawlJob(cfg)

		if *serveEvery > 0 || *serveDaily != "" {
			schedule, err := scheduleFromFlags(*serveEvery, *serveDaily, cfg.Location())
			if err != nil {
				return err
			}
			go func() {
				if err := jobs.NewScheduler(job, schedule, nil).Run(ctx); err != nil {
					logrus.Errorf("Scheduler stopped: %v", err)
				}
			}()
		}

		app := handlers.NewApp(handlers.NewBidHandler(store), handlers.NewCrawlHandler(job, ctx), db)

		go func() {
			<-ctx.Done()
			logrus.Info("Shutting down server")
			if err := app.Shutdown(); err != nil {
				logrus.Errorf("Server shutdown failed: %v", err)
			}
		}()

		logrus.Infof("Server starting on port %s", cfg.ServerPort)
		return app.Listen(":" + cfg.ServerPort)
	},
}
