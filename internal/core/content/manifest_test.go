package content

import (
	"strings"
	"testing"
)

const grapesManifest = `{
  "topic": "Grapes & Raisins",
  "safety_class": "forbidden",
  "category": "Grapes",
  "captions": {"threads": "Never feed grapes to your dog."},
  "assets": [
    {"kind": "cover", "path": "grapes/cover.png", "width": 1080, "height": 1350, "bytes": 1000}
  ],
  "generation_meta": [
    {"asset_path": "grapes/cover.png", "rule_name": "cover_v2", "rule_hash": "abc", "generated_at": "2026-03-01T09:00:00Z"}
  ],
  "sources": [{"url": "https://www.aspca.org/grapes", "grade": "a"}],
  "claims": {"names": ["grapes"], "symptoms": ["vomiting"], "severity": "severe"}
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(grapesManifest))
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if m.SlugSource() != "Grapes & Raisins" {
		t.Errorf("SlugSource = %q", m.SlugSource())
	}

	item := m.ToItem("0007-grapes-raisins")
	if item.SafetyClass != SafetyForbidden {
		t.Errorf("SafetyClass = %s, want FORBIDDEN", item.SafetyClass)
	}
	if item.Category != "grapes" {
		t.Errorf("Category = %q, want lowercased", item.Category)
	}
	if item.Provenance != ProvenanceOriginal {
		t.Errorf("Provenance = %s, want ORIGINAL default", item.Provenance)
	}
	if item.Captions[PlatformThreads] == "" {
		t.Error("expected THREADS caption")
	}
	if len(item.Assets) != 1 || item.Assets[0].Kind != AssetCover {
		t.Errorf("Assets = %+v", item.Assets)
	}
	meta := item.MetaFor("grapes/cover.png")
	if meta == nil || meta.RuleName != "cover_v2" || meta.GeneratedAt.IsZero() {
		t.Errorf("MetaFor = %+v", meta)
	}
	if len(item.Sources) != 1 || item.Sources[0].Grade != "A" {
		t.Errorf("Sources = %+v", item.Sources)
	}
}

func TestParseManifest_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"not json", `{`, "invalid manifest"},
		{"unknown field", `{"safety_class":"SAFE","category":"carrot","colour":"orange"}`, "unknown field"},
		{"no identity", `{"safety_class":"SAFE"}`, "needs an id"},
		{"bad id", `{"id":"grapes","safety_class":"SAFE"}`, "invalid item id"},
		{"bad safety", `{"category":"carrot","safety_class":"MAYBE"}`, "unknown safety class"},
		{"bad platform", `{"category":"carrot","safety_class":"SAFE","captions":{"MYSPACE":"x"}}`, "unknown platform"},
		{"bad kind", `{"category":"carrot","safety_class":"SAFE","assets":[{"kind":"GIF","path":"a"}]}`, "unknown kind"},
		{"bad grade", `{"category":"carrot","safety_class":"SAFE","sources":[{"url":"https://x","grade":"Z"}]}`, "unknown source grade"},
		{"bad time", `{"category":"carrot","safety_class":"SAFE","generation_meta":[{"asset_path":"a","generated_at":"yesterday"}]}`, "invalid generated_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
