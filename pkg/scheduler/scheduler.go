// Package scheduler manages recurring backups.
package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/supporttools/GoDBVault/pkg/config"
)

// BackupSubmitter queues a backup of a named profile and returns the task id.
// tasks.Operations satisfies it.
type BackupSubmitter interface {
	SubmitBackup(profileName string) (string, error)
}

// Scheduler drives cron-scheduled backup submissions.
type Scheduler struct {
	cronScheduler *cron.Cron
	submitter     BackupSubmitter
	cfg           *config.AppConfig
	jobIDs        map[string]cron.EntryID // Track job IDs for dynamic updates
}

// NewScheduler creates a new scheduler
func NewScheduler(submitter BackupSubmitter) (*Scheduler, error) {
	return &Scheduler{
		cronScheduler: cron.New(),
		submitter:     submitter,
		cfg:           &config.CFG,
		jobIDs:        make(map[string]cron.EntryID),
	}, nil
}

// SetupJobs registers a cron entry for every configured schedule. A schedule
// with a bad cron expression is skipped so one typo never blocks the rest.
func (s *Scheduler) SetupJobs() error {
	if len(s.cfg.Schedules) == 0 {
		log.Println("No backup schedules configured")
		return nil
	}

	for i, schedule := range s.cfg.Schedules {
		name := schedule.Name
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i+1)
		}

		jobID, err := s.cronScheduler.AddFunc(schedule.Cron, s.backupJob(name, schedule.Profile))
		if err != nil {
			log.Printf("Failed to schedule %s with cron expression '%s': %v",
				name, schedule.Cron, err)
			continue
		}

		s.jobIDs[name] = jobID
		log.Printf("Scheduled backup %s for profile %s with cron expression: %s",
			name, schedule.Profile, schedule.Cron)
	}

	return nil
}

// backupJob builds the tick function for one schedule. Each tick submits a
// backup task; the task runner owns execution and failure recording.
func (s *Scheduler) backupJob(name, profile string) func() {
	return func() {
		log.Printf("Schedule %s firing: backing up profile %s", name, profile)
		taskID, err := s.submitter.SubmitBackup(profile)
		if err != nil {
			log.Printf("Error submitting scheduled backup %s: %v", name, err)
			return
		}
		log.Printf("Schedule %s submitted backup task %s", name, taskID)
	}
}

// Start begins the scheduled jobs
func (s *Scheduler) Start() {
	s.cronScheduler.Start()
	log.Println("Backup scheduler started successfully")
}

// Stop halts all scheduled jobs and waits for a running tick to return.
func (s *Scheduler) Stop() {
	ctx := s.cronScheduler.Stop()
	<-ctx.Done()
	log.Println("Backup scheduler stopped")
}

// WaitForever blocks indefinitely to keep the application running
func (s *Scheduler) WaitForever() {
	// Create a channel that never receives any values to block forever
	blockForever := make(chan struct{})
	<-blockForever
}

// ReloadSchedules removes all existing jobs and re-creates them based on current configuration
func (s *Scheduler) ReloadSchedules() error {
	log.Println("Reloading backup schedules...")

	for name, jobID := range s.jobIDs {
		s.cronScheduler.Remove(jobID)
		delete(s.jobIDs, name)
		log.Printf("Removed schedule %s", name)
	}

	if err := s.SetupJobs(); err != nil {
		return fmt.Errorf("failed to reload schedules: %w", err)
	}

	log.Println("Successfully reloaded backup schedules")
	return nil
}

// RunOnce submits an immediate backup of the named profile, outside any
// schedule, and returns the task id.
func (s *Scheduler) RunOnce(profileName string) (string, error) {
	log.Printf("Running one-time backup for profile: %s", profileName)
	return s.submitter.SubmitBackup(profileName)
}

// GetNextRunTime returns the next scheduled run time for a named schedule.
func (s *Scheduler) GetNextRunTime(name string) (time.Time, error) {
	jobID, ok := s.jobIDs[name]
	if !ok {
		return time.Time{}, fmt.Errorf("no scheduled job found: %s", name)
	}
	return s.cronScheduler.Entry(jobID).Next, nil
}
