package naming

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/backmassage/vidopt/internal/config"
)

func TestArtifactsFor_MP4(t *testing.T) {
	a := ArtifactsFor("/videos/trip.mov", "", config.ContainerMP4, nil)
	want := Artifacts{
		Repaired:  "/videos/trip_repaired.mkv",
		Reduced:   "/videos/trip_reduced.mkv",
		Optimized: "/videos/trip-optimized.mkv",
		Final:     "/videos/trip-final.mp4",
	}
	if a != want {
		t.Errorf("got %+v\nwant %+v", a, want)
	}
	if got := a.Intermediates(); !reflect.DeepEqual(got, []string{want.Repaired, want.Reduced, want.Optimized}) {
		t.Errorf("Intermediates() = %v", got)
	}
}

func TestArtifactsFor_MKVNoFinalize(t *testing.T) {
	a := ArtifactsFor("/videos/trip.mov", "/out", config.ContainerMKV, nil)
	if a.Final != "/out/trip-optimized.mkv" || a.Final != a.Optimized {
		t.Errorf("Final = %q, want the optimized artifact", a.Final)
	}
	if got := a.Intermediates(); len(got) != 2 {
		t.Errorf("Intermediates() = %v, want repaired+reduced only", got)
	}
}

func TestArtifactsFor_CollidingStems(t *testing.T) {
	cr := NewCollisionResolver()
	a := ArtifactsFor("/v/clip.mp4", "", config.ContainerMP4, cr)
	b := ArtifactsFor("/v/clip.mkv", "", config.ContainerMP4, cr)
	again := ArtifactsFor("/v/clip.mp4", "", config.ContainerMP4, cr)

	if a.Repaired == b.Repaired {
		t.Fatalf("colliding inputs share %q", a.Repaired)
	}
	if b.Final != "/v/clip - dup1-final.mp4" {
		t.Errorf("dup final = %q", b.Final)
	}
	if again != a {
		t.Errorf("same input should keep its stem: %+v vs %+v", again, a)
	}

	cr.Release("/v/clip.mp4")
	c := ArtifactsFor("/v/clip.avi", "", config.ContainerMP4, cr)
	if c.Final != "/v/clip-final.mp4" {
		t.Errorf("released stem not reused: %q", c.Final)
	}
}

func TestCollisionResolver_Concurrent(t *testing.T) {
	cr := NewCollisionResolver()
	const n = 32
	stems := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stems[i] = cr.Resolve(fmt.Sprintf("/in/%d.mkv", i), "/out/same")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, s := range stems {
		if seen[s] {
			t.Fatalf("stem %q handed out twice", s)
		}
		seen[s] = true
	}
}

func TestIsArtifact(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/v/trip.mp4", false},
		{"/v/trip-optimized.mkv", true},
		{"/v/trip-final.mp4", true},
		{"/v/trip_repaired.mkv", true},
		{"/v/trip_reduced.mkv", true},
		{"/v/TRIP-OPTIMIZED.MKV", true},
		{"/v/clip - dup1-final.mp4", true},
		{"/v/final-cut.mp4", false},
		{"/v-optimized/trip.mp4", false},
	}
	for _, tt := range tests {
		if got := IsArtifact(tt.path); got != tt.want {
			t.Errorf("IsArtifact(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
