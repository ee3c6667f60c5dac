package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// telemetryClient is a small helper around the official InfluxDB v2 client
// used by the E2E tests to verify unit position telemetry lands in the
// bucket. It hides token/org/bucket plumbing.
type telemetryClient struct {
	org    string
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// newTelemetryClient creates a client for the given parameters. It assumes
// the server is already running and reachable.
func newTelemetryClient(url, org, bucket, token string) *telemetryClient {
	c := influxdb2.NewClient(url, token)
	return &telemetryClient{
		org:    org,
		bucket: bucket,
		client: c,
		query:  c.QueryAPI(org),
	}
}

// setupBucket ensures the organisation and bucket exist on the running
// InfluxDB instance, creating them through the management API when missing.
func (c *telemetryClient) setupBucket(ctx context.Context) error {
	orgAPI := c.client.OrganizationsAPI()
	org, err := orgAPI.FindOrganizationByName(ctx, c.org)
	if err != nil || org == nil {
		org, err = orgAPI.CreateOrganizationWithName(ctx, c.org)
		if err != nil {
			return fmt.Errorf("create org: %w", err)
		}
	}

	bucketAPI := c.client.BucketsAPI()
	buckets, err := bucketAPI.FindBucketsByOrgName(ctx, c.org)
	if err != nil {
		return err
	}
	if buckets != nil {
		for _, b := range *buckets {
			if b.Name == c.bucket {
				return nil
			}
		}
	}
	if _, err := bucketAPI.CreateBucketWithName(ctx, org, c.bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// countUnitPositions returns how many unit_position rows the bucket holds
// for the last minute.
func (c *telemetryClient) countUnitPositions(ctx context.Context) (int, error) {
	flux := fmt.Sprintf(`from(bucket:"%s") |> range(start:-1m) |> filter(fn: (r) => r._measurement == "unit_position")`, c.bucket)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	var n int
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client resources.
func (c *telemetryClient) Close() { c.client.Close() }
