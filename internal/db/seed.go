package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with demonstration items: one item ready
// for approval and one forbidden-category item whose caption still contains a
// serving size. Used by `gate init --demo`.
func SeedFixtures(database *sql.DB) error {
	now := time.Now().UTC().Format(time.RFC3339)

	items := []struct {
		id, stage, safety, category, names, symptoms, severity string
	}{
		{"0001-carrot", "BODY_READY", "SAFE", "carrot", `["carrot"]`, `["choking"]`, "none"},
		{"0002-grapes", "BODY_READY", "FORBIDDEN", "grapes", `["grapes","raisins"]`, `["vomiting","acute kidney injury"]`, "severe"},
	}
	for _, it := range items {
		if _, err := database.Exec(
			`INSERT INTO content_items (id, stage, safety_class, category, provenance, claim_names, claim_symptoms, claim_severity, revision, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 'ORIGINAL', ?, ?, ?, 1, ?, ?)`,
			it.id, it.stage, it.safety, it.category, it.names, it.symptoms, it.severity, now, now,
		); err != nil {
			return fmt.Errorf("seed content_items: %w", err)
		}
		for i, kind := range []string{"COVER", "BODY"} {
			path := fmt.Sprintf("%s/%s.png", it.id, map[string]string{"COVER": "cover", "BODY": "body_01"}[kind])
			if _, err := database.Exec(
				"INSERT INTO content_assets (item_id, position, kind, path, width, height, bytes) VALUES (?, ?, ?, ?, 1080, 1350, 412000)",
				it.id, i, kind, path,
			); err != nil {
				return fmt.Errorf("seed content_assets: %w", err)
			}
			rule := map[string]string{"COVER": "cover_v2", "BODY": "body_v1"}[kind]
			if _, err := database.Exec(
				"INSERT INTO generation_meta (item_id, asset_path, rule_name, rule_hash, generated_at) VALUES (?, ?, ?, ?, ?)",
				it.id, path, rule, "0000000000000000", now,
			); err != nil {
				return fmt.Errorf("seed generation_meta: %w", err)
			}
		}
	}

	captions := []struct{ id, platform, text string }{
		{"0001-carrot", "THREADS", "Carrots are a crunchy, low-calorie treat. Serve 2 slices for a small dog. #canmypeteat"},
		{"0002-grapes", "THREADS", "Never feed grapes to your dog, not even 1 piece. #canmypeteat"},
	}
	for _, c := range captions {
		if _, err := database.Exec(
			"INSERT INTO content_captions (item_id, platform, text) VALUES (?, ?, ?)",
			c.id, c.platform, c.text,
		); err != nil {
			return fmt.Errorf("seed content_captions: %w", err)
		}
	}

	sources := []struct{ id, url, grade string }{
		{"0001-carrot", "https://www.akc.org/expert-advice/nutrition/can-dogs-eat-carrots/", "C"},
		{"0002-grapes", "https://www.aspca.org/news/new-findings-unusual-toxicity-grapes-and-raisins", "A"},
	}
	for i, s := range sources {
		if _, err := database.Exec(
			"INSERT INTO content_sources (item_id, position, url, grade) VALUES (?, ?, ?, ?)",
			s.id, i, s.url, s.grade,
		); err != nil {
			return fmt.Errorf("seed content_sources: %w", err)
		}
	}

	return nil
}
