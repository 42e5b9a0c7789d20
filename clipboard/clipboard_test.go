package clipboard

import (
	"errors"
	"testing"
)

func TestCopy(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		failure error
		want    string
		wantErr error
	}{
		{"trimmed", "  red shoes. blue hats. ", nil, "red shoes. blue hats.", nil},
		{"empty", "   ", nil, "", ErrEmpty},
		{"write fails", "x", errors.New("no xclip"), "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Memory{Err: tt.failure}
			err := Copy(m, tt.text)
			switch {
			case tt.failure != nil:
				if !errors.Is(err, tt.failure) {
					t.Errorf("err = %v, want %v", err, tt.failure)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
			case err != nil:
				t.Fatal(err)
			}
			if m.Text != tt.want {
				t.Errorf("clipboard = %q, want %q", m.Text, tt.want)
			}
		})
	}
}
