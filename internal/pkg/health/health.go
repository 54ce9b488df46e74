package health

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Report is the JSON body of the health endpoint.
type Report struct {
	Healthy   bool            `json:"healthy"`
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checked_at"`
}

// Database pings the pool behind db.
func Database(db func() *gorm.DB) Check {
	return func(ctx context.Context) error {
		conn := db()
		if conn == nil {
			return gorm.ErrInvalidDB
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// Run executes every check with timeout and collects the results.
func Run(ctx context.Context, timeout time.Duration, checks map[string]Check) Report {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{Healthy: true, Checks: make(map[string]bool, len(checks)), CheckedAt: time.Now()}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			log.Warnf("[Health] %s unhealthy: %v", name, err)
			report.Healthy = false
		}
		report.Checks[name] = err == nil
	}
	return report
}

// Handler answers 200 when every check passes and 503 otherwise.
func Handler(checks map[string]Check) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := Run(context.Background(), 2*time.Second, checks)
		status := fiber.StatusOK
		if !report.Healthy {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(report)
	}
}
