// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	t.Parallel()

	for _, id := range []Id{
		RunningAsRootId,
		ProjectDirMissingId,
		BootConfigNotFoundId,
		ConfigLoadFailedId,
		CommandFailedId,
		BoardNotDetectedId,
		PackageManagerBusyId,
		ServiceUnitFailedId,
	} {
		i := Get(id)
		if i == nil {
			t.Errorf("Get(%d) returned nil", id)
			continue
		}
		if i.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, i.Id())
		}
	}

	if Get(Id(9999)) != nil {
		t.Error("Get() for unknown id should return nil")
	}
}

func TestValues_SortedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Id() >= values[i].Id() {
			t.Errorf("Values() not sorted at %d", i)
		}
	}
}

func TestAllIssuesHaveContent(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		if strings.TrimSpace(string(i.MarkdownMsg())) == "" {
			t.Errorf("issue %d has empty markdown", i.Id())
		}
	}
}

func TestIssue_ExtLinksAreCopies(t *testing.T) {
	t.Parallel()

	links := Get(BootConfigNotFoundId).ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	links[0] = "mutated"
	if Get(BootConfigNotFoundId).ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() should return a copy")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(ServiceUnitFailedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "service unit") {
		t.Errorf("rendered output missing heading text:\n%s", out)
	}
	if !strings.Contains(out, "freedesktop.org") {
		t.Errorf("rendered output missing link:\n%s", out)
	}
}

func TestIssue_RenderPropagatesError(t *testing.T) {
	// Swaps the package-level renderer, so it must not run in parallel.
	original := render
	t.Cleanup(func() { render = original })

	want := errors.New("render failed")
	render = func(string, string) (string, error) { return "", want }

	if _, err := Get(RunningAsRootId).Render("dark"); !errors.Is(err, want) {
		t.Errorf("Render() error = %v, want %v", err, want)
	}
}
