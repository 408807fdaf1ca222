package commands

import (
	"fmt"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/jobs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	scheduleEvery *time.Duration
	scheduleDaily *string
)

func init() {
	scheduleEvery = scheduleCmd.Flags().Duration("every", 0, "Run on a fixed interval, e.g. 8h.")
	scheduleDaily = scheduleCmd.Flags().String("daily", "", "Run at fixed times of day, e.g. 09:00,18:00 (TIMEZONE applies).")
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Runs one crawl of the portal and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		job := newCrawlJob(cfg)
		err := jobs.NewScheduler(job, jobs.Once(), nil).Run(cmd.Context())
		printReport(job.LastReport())
		return err
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule (--every <duration> | --daily <HH:MM,...>)",
	Short: "Runs crawls repeatedly until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		schedule, err := scheduleFromFlags(*scheduleEvery, *scheduleDaily, cfg.Location())
		if err != nil {
			return err
		}
		logrus.WithField("schedule", schedule.String()).Info("Starting crawl schedule")
		return jobs.NewScheduler(newCrawlJob(cfg), schedule, nil).Run(cmd.Context())
	},
}

func scheduleFromFlags(every time.Duration, daily string, loc *time.Location) (jobs.Schedule, error) {
	switch {
	case every > 0 && daily != "":
		return nil, fmt.Errorf("--every and --daily are mutually exclusive")
	case every > 0:
		return jobs.Every(every), nil
	case daily != "":
		times, err := jobs.ParseTimesOfDay(daily)
		if err != nil {
			return nil, err
		}
		return jobs.DailyAt(loc, times...), nil
	default:
		return nil, fmt.Errorf("one of --every or --daily is required")
	}
}
