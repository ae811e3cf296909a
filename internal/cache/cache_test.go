package cache

import (
	"os"
	"testing"
	"time"

	"desec-core/internal/model"
)

func TestPutThenReadThroughMemory(t *testing.T) {
	c, err := New(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	zones := []model.Zone{{Name: "example.com", Published: true}}
	if err := c.PutZones(zones); err != nil {
		t.Fatal(err)
	}
	res := c.Zones()
	if !res.Hit || len(res.Zones) != 1 || res.Zones[0].Name != "example.com" {
		t.Fatalf("expected memory hit with 1 zone, got %+v", res)
	}
}

func TestReadThroughFallsBackToBinaryThenText(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	zones := []model.Zone{{Name: "example.com"}, {Name: "example.net"}}
	if err := c1.PutZones(zones); err != nil {
		t.Fatal(err)
	}

	c2, err := New(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	res := c2.Zones()
	if !res.Hit || len(res.Zones) != 2 {
		t.Fatalf("expected L2-populated fresh Cache to hit with 2 zones, got %+v", res)
	}
}

func TestCorruptedBinaryFallsBackToText(t *testing.T) {
	dir := t.TempDir()
	c1, err := New(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	zones := []model.Zone{{Name: "example.com"}}
	if err := c1.PutZones(zones); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(c1.binPath("zones"), []byte("not a valid gob stream"), 0o644); err != nil {
		t.Fatal(err)
	}

	c2, err := New(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	res := c2.Zones()
	if !res.Hit || len(res.Zones) != 1 || res.Zones[0].Name != "example.com" {
		t.Fatalf("expected fallback to text layer to succeed, got %+v", res)
	}
}

func TestInvalidateZonesEvictsAllLayers(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PutZones([]model.Zone{{Name: "example.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := c.InvalidateZones(); err != nil {
		t.Fatal(err)
	}
	if res := c.Zones(); res.Hit {
		t.Fatalf("expected miss after invalidation, got %+v", res)
	}
	if _, err := os.Stat(c.binPath("zones")); !os.IsNotExist(err) {
		t.Fatal("expected binary layer file to be removed")
	}
}

func TestInvalidateRecordsOnlyAffectsThatDomain(t *testing.T) {
	c, err := New(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PutRecords("a.example", []model.RRset{{Subname: "", Type: "A", Records: []string{"1.2.3.4"}}}); err != nil {
		t.Fatal(err)
	}
	if err := c.PutRecords("b.example", []model.RRset{{Subname: "", Type: "A", Records: []string{"5.6.7.8"}}}); err != nil {
		t.Fatal(err)
	}

	if err := c.InvalidateRecords("a.example"); err != nil {
		t.Fatal(err)
	}
	if res := c.Records("a.example"); res.Hit {
		t.Fatalf("expected a.example to be evicted, got %+v", res)
	}
	if res := c.Records("b.example"); !res.Hit {
		t.Fatal("expected b.example to remain cached")
	}
}

func TestStaleZonesReportedButStillServed(t *testing.T) {
	c, err := New(t.TempDir(), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PutZones([]model.Zone{{Name: "example.com"}}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	res := c.Zones()
	if !res.Hit {
		t.Fatal("stale data must still be served")
	}
	if !res.Stale {
		t.Fatal("expected zones to be reported stale")
	}
}
