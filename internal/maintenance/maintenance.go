// Package maintenance runs the periodic stats/ANALYZE job over the store.
// Retention is deliberately out of scope: records are only ever removed by
// an explicit clear.
package maintenance

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/vantage-tools/vantage/internal/store"
	"gorm.io/gorm"
)

// Job refreshes query-planner statistics and logs the record count.
type Job struct {
	store  *store.Store
	db     *gorm.DB
	driver string
}

// Opts holds parameters for creating a maintenance Job.
type Opts struct {
	Store  *store.Store
	DB     *gorm.DB
	Driver string // "sqlite" or "mysql"; selects the ANALYZE statement
}

// NewJob creates a maintenance Job.
func NewJob(opts Opts) (*Job, error) {
	if opts.Store == nil || opts.DB == nil {
		return nil, fmt.Errorf("maintenance: store and db are required")
	}
	return &Job{store: opts.Store, db: opts.DB, driver: opts.Driver}, nil
}

// Run executes one maintenance pass.
func (j *Job) Run() {
	count, err := j.store.Count()
	if err != nil {
		log.Printf("maintenance: count failed: %v", err)
		return
	}

	if err := j.db.Exec(analyzeSQL(j.driver)).Error; err != nil {
		log.Printf("maintenance: analyze failed: %v", err)
		return
	}
	log.Printf("maintenance: analyzed, %d records stored", count)
}

// Schedule registers the job on a cron runner using a standard 5-field
// expression and starts it. The returned stop function halts the runner.
func (j *Job) Schedule(expr string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddJob(expr, j); err != nil {
		return nil, fmt.Errorf("maintenance: schedule %q: %w", expr, err)
	}
	c.Start()
	return func() { c.Stop() }, nil
}

// analyzeSQL returns the statistics-refresh statement for the backend.
func analyzeSQL(driver string) string {
	if driver == "mysql" {
		return "ANALYZE TABLE log_records"
	}
	return "ANALYZE"
}
