package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusWithoutChecks(t *testing.T) {
	report := NewService().Status(context.Background())
	if !report.OK || report.Checks != nil {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestStatusReportsFailingCheck(t *testing.T) {
	svc := NewService()
	svc.Add("database", func(ctx context.Context) error { return nil })
	svc.Add("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected not ok")
	}
	if report.Checks["database"] != "ok" {
		t.Fatalf("unexpected database check: %q", report.Checks["database"])
	}
	if report.Checks["redis"] != "connection refused" {
		t.Fatalf("unexpected redis check: %q", report.Checks["redis"])
	}
}
