// SPDX-License-Identifier: MPL-2.0

package bootcfg

import (
	"errors"
	"reflect"
	"testing"
)

const piConfig = `# For more options and information see
# http://rpf.io/configtxt
#dtparam=spi=on
dtparam=audio=on
camera_auto_detect=1

[all]
dtoverlay=vc4-kms-v3d
`

func TestFileHas(t *testing.T) {
	t.Parallel()

	f := Parse(piConfig)

	tests := []struct {
		directive string
		want      bool
	}{
		{"dtparam=audio=on", true},
		{"  dtparam=audio=on  ", true},
		{"dtoverlay=vc4-kms-v3d", true},
		// Commented-out directives do not count as enabled.
		{"dtparam=spi=on", false},
		{"dtoverlay=w1-gpio", false},
		{"dtoverlay=vc4", false},
		{"", true},
	}

	for _, tt := range tests {
		if got := f.Has(tt.directive); got != tt.want {
			t.Errorf("Has(%q) = %v, want %v", tt.directive, got, tt.want)
		}
	}
}

func TestFileHasParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		directive string
		want      bool
	}{
		{"overlay with gpio pin", "dtoverlay=w1-gpio,gpiopin=4\n", "dtoverlay=w1-gpio", true},
		{"overlay with several parameters", "dtoverlay=w1-gpio,gpiopin=17,pullup=1\n", "dtoverlay=w1-gpio", true},
		{"overlay named like a parameter", "dtoverlay=w1-gpio-pullup\n", "dtoverlay=w1-gpio", false},
		{"other overlay with parameter", "dtoverlay=gpio-shutdown,w1-gpio\n", "dtoverlay=w1-gpio", false},
		{"commented overlay", "#dtoverlay=w1-gpio,gpiopin=4\n", "dtoverlay=w1-gpio", false},
		{"dtparam list", "dtparam=audio=on,spi=on\n", "dtparam=spi=on", true},
		{"dtparam list with other value", "dtparam=spi=off,audio=on\n", "dtparam=spi=on", false},
		{"different key", "dtoverlay=spi=on\n", "dtparam=spi=on", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Parse(tt.content).Has(tt.directive); got != tt.want {
				t.Errorf("Has(%q) on %q = %v, want %v", tt.directive, tt.content, got, tt.want)
			}
		})
	}
}

func TestFileHasModule(t *testing.T) {
	t.Parallel()

	f := Parse("# /etc/modules\ni2c-dev\nw1_gpio\nw1-therm\n")
	for _, name := range []string{"w1_gpio", "w1-gpio", "w1_therm", "w1-therm", "i2c_dev"} {
		if !f.HasModule(name) {
			t.Errorf("HasModule(%q) = false, want true", name)
		}
	}
	if f.HasModule("w1") {
		t.Error("HasModule(w1) = true, want false for partial name")
	}

	got := f.MissingModules([]string{"w1-gpio", "w1_therm", "spi_bcm2835", "spi-bcm2835"})
	if want := []string{"spi_bcm2835"}; !reflect.DeepEqual(got, want) {
		t.Errorf("MissingModules() = %v, want %v", got, want)
	}
}

func TestFileHasToken(t *testing.T) {
	t.Parallel()

	// /etc/modules style files sometimes carry several modules per line.
	f := Parse("i2c-dev w1-gpio\n")
	if !f.Has("w1-gpio") {
		t.Error("Has(w1-gpio) = false, want true for whitespace-separated token")
	}
	if f.Has("w1") {
		t.Error("Has(w1) = true, want false for partial token")
	}
}

func TestFileMissing(t *testing.T) {
	t.Parallel()

	f := Parse(piConfig + "dtparam=i2c_arm=on\n")
	got := f.Missing([]string{"dtparam=spi=on", "dtparam=i2c_arm=on", "dtoverlay=w1-gpio", "dtparam=spi=on"})
	want := []string{"dtparam=spi=on", "dtoverlay=w1-gpio"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}
}

func TestAppendBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing string
		comment  string
		lines    []string
		want     string
	}{
		{
			name:     "nothing to add",
			existing: "a\n",
			lines:    nil,
			want:     "",
		},
		{
			name:     "terminated file",
			existing: "a\n",
			comment:  "Enable sensor interfaces",
			lines:    []string{"dtparam=spi=on"},
			want:     "\n# Enable sensor interfaces\ndtparam=spi=on\n",
		},
		{
			name:     "unterminated file gets newline first",
			existing: "a",
			lines:    []string{"w1-gpio", "w1-therm"},
			want:     "\nw1-gpio\nw1-therm\n",
		},
		{
			name:     "empty file",
			existing: "",
			lines:    []string{"w1-gpio"},
			want:     "w1-gpio\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := AppendBlock(tt.existing, tt.comment, tt.lines); got != tt.want {
				t.Errorf("AppendBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	t.Parallel()

	directives := []string{"dtparam=spi=on", "dtparam=i2c_arm=on", "dtoverlay=w1-gpio"}
	content := piConfig

	for range 5 {
		missing := Parse(content).Missing(directives)
		content += AppendBlock(content, "sensorprep", missing)
	}

	f := Parse(content)
	for _, d := range directives {
		count := 0
		for _, line := range f.Lines() {
			if line == d {
				count++
			}
		}
		if count != 1 {
			t.Errorf("directive %q appears %d times, want 1", d, count)
		}
	}
}

type fakeStater map[string]bool

func (f fakeStater) Exists(path string) bool { return f[path] }

func TestLocate(t *testing.T) {
	t.Parallel()

	path, err := Locate(fakeStater{"/boot/config.txt": true}, DefaultBootConfigPaths)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if path != "/boot/config.txt" {
		t.Errorf("Locate() = %q, want /boot/config.txt", path)
	}

	path, err = Locate(fakeStater{"/boot/config.txt": true, "/boot/firmware/config.txt": true}, DefaultBootConfigPaths)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if path != "/boot/firmware/config.txt" {
		t.Errorf("Locate() = %q, want firmware path first", path)
	}

	_, err = Locate(fakeStater{}, DefaultBootConfigPaths)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate(none) error = %v, want ErrNotFound", err)
	}
}
