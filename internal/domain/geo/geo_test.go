package geo

import (
	"math"
	"testing"
)

var (
	dhaka      = Point{Lat: 23.8103, Lng: 90.4125}
	chittagong = Point{Lat: 22.3569, Lng: 91.7832}
)

func TestDistanceSamePointIsZero(t *testing.T) {
	points := []Point{dhaka, chittagong, {Lat: -33.8688, Lng: 151.2093}, {Lat: 89.9, Lng: -179.9}}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Fatalf("expected zero distance for %+v, got %v", p, d)
		}
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	ab := Distance(dhaka, chittagong)
	ba := Distance(chittagong, dhaka)
	if math.Abs(ab-ba) > 1e-6 {
		t.Fatalf("expected symmetric distance, got %v and %v", ab, ba)
	}
	// Roughly 213 km by great circle.
	if ab < 200000 || ab > 230000 {
		t.Fatalf("unexpected dhaka-chittagong distance: %v", ab)
	}
}

func TestAllowedBoundaryIsInclusive(t *testing.T) {
	target := Target{Name: "Office", AllowedRadiusMeters: 200}
	if !Allowed(target, 200) {
		t.Fatal("expected distance equal to radius to be allowed")
	}
	if Allowed(target, 200.0001) {
		t.Fatal("expected distance beyond radius to be rejected")
	}
}

func TestEvaluateBoundaryAtExactRadius(t *testing.T) {
	origin := Point{Lat: 23.8, Lng: 90.4}
	point := Point{Lat: 23.801, Lng: 90.4}
	exact := Distance(point, origin)

	verdict, _ := Evaluate(point, []Target{{Name: "Office", Lat: origin.Lat, Lng: origin.Lng, AllowedRadiusMeters: exact}})
	if !verdict.IsAllowed {
		t.Fatalf("expected allowed at exact radius, got %+v", verdict)
	}

	verdict, _ = Evaluate(point, []Target{{Name: "Office", Lat: origin.Lat, Lng: origin.Lng, AllowedRadiusMeters: exact - 0.01}})
	if verdict.IsAllowed {
		t.Fatalf("expected rejection just past radius, got %+v", verdict)
	}
}

func TestEvaluateUnrestrictedRadius(t *testing.T) {
	field := Target{Name: "Field", Lat: dhaka.Lat, Lng: dhaka.Lng, AllowedRadiusMeters: 10000000}
	verdict, ok := Evaluate(Point{Lat: -33.8688, Lng: 151.2093}, []Target{field})
	if !ok || !verdict.IsAllowed || verdict.TargetName != "Field" {
		t.Fatalf("expected unrestricted target to allow any distance, got %+v", verdict)
	}
}

func TestEvaluateStopsAtFirstAllowedTarget(t *testing.T) {
	here := Point{Lat: 23.8103, Lng: 90.4125}
	targets := []Target{
		{Name: "Wide", Lat: 23.82, Lng: 90.42, AllowedRadiusMeters: 5000},
		{Name: "Exact", Lat: here.Lat, Lng: here.Lng, AllowedRadiusMeters: 50},
	}
	verdict, _ := Evaluate(here, targets)
	if verdict.TargetName != "Wide" {
		t.Fatalf("expected first allowed target in order, got %s", verdict.TargetName)
	}
}

func TestEvaluateReportsNearestWhenNoneAllowed(t *testing.T) {
	here := Point{Lat: 23.8103, Lng: 90.4125}
	targets := []Target{
		{Name: "Far", Lat: 24.5, Lng: 90.4, AllowedRadiusMeters: 100},
		{Name: "Near", Lat: 23.82, Lng: 90.42, AllowedRadiusMeters: 100},
		{Name: "Farther", Lat: 25.5, Lng: 90.4, AllowedRadiusMeters: 100},
	}
	verdict, ok := Evaluate(here, targets)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if verdict.IsAllowed {
		t.Fatalf("expected rejection, got %+v", verdict)
	}
	if verdict.TargetName != "Near" {
		t.Fatalf("expected nearest target, got %s", verdict.TargetName)
	}
	want := Distance(here, targets[1].Point())
	if math.Abs(verdict.DistanceMeters-want) > 1e-9 {
		t.Fatalf("expected distance %v, got %v", want, verdict.DistanceMeters)
	}
	if verdict.AllowedRadius != 100 {
		t.Fatalf("expected allowed radius 100, got %v", verdict.AllowedRadius)
	}
}

func TestEvaluateEmptyTargets(t *testing.T) {
	if _, ok := Evaluate(dhaka, nil); ok {
		t.Fatal("expected no verdict for empty target list")
	}
}

func TestPointValid(t *testing.T) {
	if (Point{}).Valid() {
		t.Fatal("zero point should be invalid")
	}
	if (Point{Lat: 23.8}).Valid() {
		t.Fatal("point with zero lng should be invalid")
	}
	if !dhaka.Valid() {
		t.Fatal("expected real coordinates to be valid")
	}
}
