package history

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

func TestEncodeDecode(t *testing.T) {
	d := func(n int) time.Time { return time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n) }

	tests := []struct {
		name       string
		in         models.RawSeries
		wantDays   []int32
		wantValues []int64
	}{
		{
			name: "empty",
			in:   models.RawSeries{},
		},
		{
			name:       "contiguous with correction",
			in:         models.RawSeries{{T: d(0), Value: 100}, {T: d(1), Value: 120}, {T: d(2), Value: 115}},
			wantDays:   []int32{0, 1, 1},
			wantValues: []int64{100, 20, -5},
		},
		{
			name:       "missing days across a year boundary",
			in:         models.RawSeries{{T: d(0), Value: 1}, {T: d(3), Value: 4}, {T: d(10), Value: 9}},
			wantDays:   []int32{0, 3, 7},
			wantValues: []int64{1, 3, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Encode(tt.in)
			if p.Len() != len(tt.in) {
				t.Fatalf("Len() = %d, want %d", p.Len(), len(tt.in))
			}
			for i := range tt.wantDays {
				if p.Days[i] != tt.wantDays[i] || p.Values[i] != tt.wantValues[i] {
					t.Errorf("sample %d = (%d,%d), want (%d,%d)", i, p.Days[i], p.Values[i], tt.wantDays[i], tt.wantValues[i])
				}
			}

			back, err := Decode(p)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if len(back) != len(tt.in) {
				t.Fatalf("decoded %d samples, want %d", len(back), len(tt.in))
			}
			for i := range back {
				if !back[i].T.Equal(tt.in[i].T) || back[i].Value != tt.in[i].Value {
					t.Errorf("sample %d = %+v, want %+v", i, back[i], tt.in[i])
				}
			}
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode(Packed{Days: []int32{0}, Values: []int64{1, 2}})
	if !errors.Is(err, ErrCorruptPack) {
		t.Errorf("error = %v, want ErrCorruptPack", err)
	}
}

func TestTrimLookback(t *testing.T) {
	var raw models.RawSeries
	for i := 0; i < 20; i++ {
		raw = append(raw, models.RawPoint{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Value: int64(i)})
	}
	got := trimLookback(raw, 7)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8 (window plus base day)", len(got))
	}
	if got[0].Value != 12 {
		t.Errorf("first = %d, want 12", got[0].Value)
	}
	if len(trimLookback(nil, 7)) != 0 {
		t.Error("empty input should stay empty")
	}
}
