package e2e

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/fleet"
	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/infra/metrics"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal JUnit XML report so CI systems can display the
// results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container already set up with the test
// organisation and token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// Test_E2E_BoardEventsReachInflux drives a board through the manager with
// the Influx sink behind the event collector and reads the points back.
func Test_E2E_BoardEventsReachInflux(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	cont, url := startInflux(ctx, t)
	defer cont.Terminate(context.Background()) //nolint:errcheck

	reader := NewInfluxReader(url, influxOrg, influxBucket, influxToken)
	defer reader.Close()
	if err := reader.EnsureBucket(ctx); err != nil {
		t.Fatalf("bucket: %v", err)
	}

	sink := metrics.NewInfluxSink(url, influxToken, influxOrg, influxBucket)
	bus := eventbus.New()
	collectorCtx, stop := context.WithCancel(ctx)
	defer stop()
	metrics.StartEventCollector(collectorCtx, bus, sink)

	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	reg := jobs.NewMemoryRegistry(
		jobs.Record{ID: "A", ScheduledTime: day.Add(8 * time.Hour)},
		jobs.Record{ID: "B", ScheduledTime: day.Add(9 * time.Hour)},
	)
	cat := fleet.StaticCatalog{{ID: "V1", Capacity: 1}, {ID: "V2", Capacity: model.Unlimited}}
	mgr, err := dispatch.NewManager(dispatch.Config{}, reg, cat, boardstore.NewMemoryStore(), nil, bus)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer func() { _ = mgr.Close(context.Background()) }()

	res, err := mgr.Assign(ctx, dispatch.AssignJob{Date: "2024-06-03", JobID: "A", VehicleID: "V1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, err = mgr.Assign(ctx, dispatch.AssignJob{Date: "2024-06-03", JobID: "B", VehicleID: "V1", ExpectedVersion: res.Version})
	if board.Code(err) != board.CodeCapacityExceeded {
		t.Fatalf("expected capacity_exceeded, got %v", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		n, err := reader.CountTagged(ctx, "board_command", "date", "2024-06-03")
		if err == nil && n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no board_command points in influx (last error %v)", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
	rejected, err := reader.CountTagged(ctx, "board_command", "reason", board.CodeCapacityExceeded)
	if err != nil || rejected == 0 {
		t.Fatalf("expected a rejected command point, got %d (%v)", rejected, err)
	}

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
