package orientation

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestComputePoseFromAccel(t *testing.T) {
	tests := []struct {
		name        string
		ax, ay, az  float64
		roll, pitch float64
	}{
		{"flat", 0, 0, 9.81, 0, 0},
		{"on left edge", 0, 9.81, 0, 90, 0},
		{"nose down", -9.81, 0, 0, 0, 90},
	}
	for _, tt := range tests {
		p := ComputePoseFromAccel(tt.ax, tt.ay, tt.az)
		if !near(p.Roll, tt.roll) || !near(p.Pitch, tt.pitch) || p.Yaw != 0 {
			t.Errorf("%s: got %+v, want roll %v pitch %v", tt.name, p, tt.roll, tt.pitch)
		}
	}
}

func TestRotationMatrixFlatFacingNorth(t *testing.T) {
	r, ok := RotationMatrix([3]float64{0, 0, 9.81}, [3]float64{0, 22, -40})
	if !ok {
		t.Fatal("RotationMatrix failed")
	}
	identity := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for i := range r {
		if !near(r[i], identity[i]) {
			t.Fatalf("R = %v, want identity", r)
		}
	}
	p := FromRotationMatrix(r)
	if !near(p.Yaw, 0) || !near(p.Pitch, 0) || !near(p.Roll, 0) {
		t.Errorf("pose = %+v, want zero", p)
	}
}

func TestRotationMatrixUpright(t *testing.T) {
	r, ok := RotationMatrix([3]float64{0, 9.81, 0}, [3]float64{0, 10, -40})
	if !ok {
		t.Fatal("RotationMatrix failed")
	}
	if p := FromRotationMatrix(r); !near(p.Pitch, -90) {
		t.Errorf("upright pitch = %v, want -90", p.Pitch)
	}
}

func TestRotationMatrixRejectsDegenerateInput(t *testing.T) {
	if _, ok := RotationMatrix([3]float64{0, 0, 0.5}, [3]float64{0, 22, -40}); ok {
		t.Error("accepted free-fall gravity")
	}
	if _, ok := RotationMatrix([3]float64{0, 0, 9.81}, [3]float64{0, 0, 40}); ok {
		t.Error("accepted field parallel to gravity")
	}
}
