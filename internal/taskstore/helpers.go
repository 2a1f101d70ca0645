package taskstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"quill/internal/task"
)

const taskColumns = "id, task_type, topic, style, tone, target_length, tags_json, categories_json, writing_style_ref, requires_approval, auto_publish, status, stage, iteration_count, title, content, word_count, quality_score, error_message, featured_image_ref, seo_json, publish_target_ref, created_at, updated_at, last_heartbeat"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*task.Task, error) {
	var (
		id               string
		taskType         string
		topic            string
		style            sql.NullString
		tone             sql.NullString
		targetLength     sql.NullInt64
		tagsJSON         sql.NullString
		categoriesJSON   sql.NullString
		writingStyleRef  sql.NullString
		requiresApproval sql.NullInt64
		autoPublish      sql.NullInt64
		statusStr        string
		stage            sql.NullString
		iterationCount   sql.NullInt64
		title            sql.NullString
		content          sql.NullString
		wordCount        sql.NullInt64
		qualityScore     sql.NullInt64
		errorMessage     sql.NullString
		featuredImageRef sql.NullString
		seoJSON          sql.NullString
		publishTargetRef sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&taskType,
		&topic,
		&style,
		&tone,
		&targetLength,
		&tagsJSON,
		&categoriesJSON,
		&writingStyleRef,
		&requiresApproval,
		&autoPublish,
		&statusStr,
		&stage,
		&iterationCount,
		&title,
		&content,
		&wordCount,
		&qualityScore,
		&errorMessage,
		&featuredImageRef,
		&seoJSON,
		&publishTargetRef,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	t := &task.Task{
		ID:               id,
		Type:             task.Type(taskType),
		Topic:            topic,
		Style:            style.String,
		Tone:             tone.String,
		TargetLength:     int(targetLength.Int64),
		WritingStyleRef:  writingStyleRef.String,
		RequiresApproval: requiresApproval.Int64 != 0,
		AutoPublish:      autoPublish.Int64 != 0,
		Status:           task.Status(statusStr),
		Stage:            stage.String,
		IterationCount:   int(iterationCount.Int64),
		Title:            title.String,
		Content:          content.String,
		WordCount:        int(wordCount.Int64),
		ErrorMessage:     errorMessage.String,
		FeaturedImageRef: featuredImageRef.String,
		PublishTargetRef: publishTargetRef.String,
	}
	if qualityScore.Valid {
		t.SetScore(int(qualityScore.Int64))
	}
	if tagsJSON.Valid {
		_ = json.Unmarshal([]byte(tagsJSON.String), &t.Tags)
	}
	if categoriesJSON.Valid {
		_ = json.Unmarshal([]byte(categoriesJSON.String), &t.Categories)
	}
	if seoJSON.Valid && strings.TrimSpace(seoJSON.String) != "" {
		var seo task.SEOMetadata
		if err := json.Unmarshal([]byte(seoJSON.String), &seo); err == nil {
			t.SEO = &seo
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		t.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		t.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			t.LastHeartbeat = &heartbeat
		}
	}
	return t, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableJSON(value any) (any, error) {
	switch v := value.(type) {
	case []string:
		if len(v) == 0 {
			return nil, nil
		}
	case *task.SEOMetadata:
		if v == nil {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
