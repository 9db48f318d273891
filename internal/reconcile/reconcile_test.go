package reconcile

import (
	"testing"

	"github.com/pixelcrate/pixelcrate/internal/metadata"
)

func TestResolveKeyCascade(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		keys     []string
		wantKey  string
		wantTag  Strategy
		wantMiss bool
	}{
		{
			name:    "exact",
			input:   "photo_a1b2c3d4.png",
			keys:    []string{"other.png", "photo_a1b2c3d4.png"},
			wantKey: "photo_a1b2c3d4.png",
			wantTag: StrategyExact,
		},
		{
			name:    "url decoded exact",
			input:   "my%20photo.png",
			keys:    []string{"my photo.png"},
			wantKey: "my photo.png",
			wantTag: StrategyExact,
		},
		{
			name:    "case insensitive",
			input:   "Photo_A1B2C3D4.PNG",
			keys:    []string{"photo_a1b2c3d4.png"},
			wantKey: "photo_a1b2c3d4.png",
			wantTag: StrategyCaseInsensitive,
		},
		{
			name:    "base name survives divergent suffixes",
			input:   "widget_a1b2c3d4.png",
			keys:    []string{"widget-x9q8r7.png"},
			wantKey: "widget-x9q8r7.png",
			wantTag: StrategyBaseName,
		},
		{
			name:    "base containment",
			input:   "acme-widget-deluxe_11111111.png",
			keys:    []string{"acme-widget_22222222.png"},
			wantKey: "acme-widget_22222222.png",
			wantTag: StrategyBaseContains,
		},
		{
			// Short bases dodge the containment rule, so only the
			// path-suffix rule can join these two.
			name:    "path suffix",
			input:   "uploads/im_1.png",
			keys:    []string{"im_1.png"},
			wantKey: "im_1.png",
			wantTag: StrategyPathSuffix,
		},
		{
			name:     "no match",
			input:    "zebra_ffffffff.png",
			keys:     []string{"giraffe_11111111.png"},
			wantMiss: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, tag, ok := ResolveKey(tt.input, tt.keys)
			if tt.wantMiss {
				if ok {
					t.Fatalf("ResolveKey matched %q via %s, want miss", key, tag)
				}
				return
			}
			if !ok {
				t.Fatal("ResolveKey missed, want match")
			}
			if key != tt.wantKey || tag != tt.wantTag {
				t.Errorf("ResolveKey = (%q, %s), want (%q, %s)", key, tag, tt.wantKey, tt.wantTag)
			}
		})
	}
}

func TestResolveKeyPrefersStrongerStrategy(t *testing.T) {
	// An exact key must win even when listed after a weaker candidate.
	keys := []string{"photo_99999999.png", "photo_a1b2c3d4.png"}
	key, tag, ok := ResolveKey("photo_a1b2c3d4.png", keys)
	if !ok || key != "photo_a1b2c3d4.png" || tag != StrategyExact {
		t.Errorf("got (%q, %s, %v), want exact hit", key, tag, ok)
	}
}

func TestResolveRecordProductNameCrossReference(t *testing.T) {
	records := map[string]metadata.Record{
		"unrelated-key_00000000.png": {
			ProductName: "Acme Rocket Skates",
			SourceURL:   "https://www.example.com/p/rocket-skates",
		},
	}

	m, ok := ResolveRecord("acme-rocket-skates_a1b2c3d4.png", records)
	if !ok {
		t.Fatal("ResolveRecord missed, want product-name match")
	}
	if m.Strategy != StrategyProductName {
		t.Errorf("Strategy = %s, want %s", m.Strategy, StrategyProductName)
	}
	if !m.Updated {
		t.Error("Updated = false, want true so the record is rewritten under the physical name")
	}
	if m.Record.SourceURL != "https://www.example.com/p/rocket-skates" {
		t.Errorf("SourceURL = %q", m.Record.SourceURL)
	}
}

func TestResolveRecordDescriptionURL(t *testing.T) {
	records := map[string]metadata.Record{
		"something-else_00000000.png": {
			ProductDescription: "See turbo-blender at https://shop.example.com/turbo-blender for details",
		},
	}

	m, ok := ResolveRecord("turbo-blender_a1b2c3d4.png", records)
	if !ok {
		t.Fatal("ResolveRecord missed, want description-url match")
	}
	if m.Strategy != StrategyDescriptionURL {
		t.Errorf("Strategy = %s, want %s", m.Strategy, StrategyDescriptionURL)
	}
	if m.Record.SourceURL != "https://shop.example.com/turbo-blender" {
		t.Errorf("SourceURL = %q, want extracted URL", m.Record.SourceURL)
	}
}

func TestResolveRecordMissIsNotAnError(t *testing.T) {
	records := map[string]metadata.Record{
		"unrelated_00000000.png": {ProductName: "Completely Different Thing"},
	}
	if _, ok := ResolveRecord("zzz_a1b2c3d4.png", records); ok {
		t.Error("ResolveRecord matched unrelated record")
	}
}

func TestResolveRecordTieBreakIsDeterministic(t *testing.T) {
	// Two candidates hit the same rule; the winner must not depend on map
	// iteration order, since a weak match persists whichever key won.
	records := map[string]metadata.Record{
		"widget-bbbbbbbb.png": {ProductName: "B"},
		"widget-aaaaaaaa.png": {ProductName: "A"},
	}
	for i := 0; i < 50; i++ {
		m, ok := ResolveRecord("widget_a1b2c3d4.png", records)
		if !ok {
			t.Fatal("ResolveRecord missed, want base-name match")
		}
		if m.Key != "widget-aaaaaaaa.png" {
			t.Fatalf("run %d: Key = %q, want the first candidate in sorted order", i, m.Key)
		}
	}

	byName := map[string]metadata.Record{
		"zz_00000000.png": {ProductName: "Acme Rocket Skates"},
		"aa_00000000.png": {ProductName: "Acme Rocket Skates"},
	}
	for i := 0; i < 50; i++ {
		m, ok := ResolveRecord("acme-rocket-skates_a1b2c3d4.png", byName)
		if !ok || m.Strategy != StrategyProductName {
			t.Fatalf("run %d: got (%+v, %v), want product-name match", i, m, ok)
		}
		if m.Key != "aa_00000000.png" {
			t.Fatalf("run %d: Key = %q, want the first candidate in sorted order", i, m.Key)
		}
	}
}

func TestResolveRecordExactBeatsWeakStrategies(t *testing.T) {
	records := map[string]metadata.Record{
		"widget_a1b2c3d4.png":  {ProductName: "Widget"},
		"widget-copy_0000.png": {ProductName: "Widget Thing Widget"},
	}

	m, ok := ResolveRecord("widget_a1b2c3d4.png", records)
	if !ok || m.Strategy != StrategyExact || m.Key != "widget_a1b2c3d4.png" {
		t.Errorf("got (%+v, %v), want exact match", m, ok)
	}
	if m.Updated {
		t.Error("exact match must not request a rewrite")
	}
}
