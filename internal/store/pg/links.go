package pg

import (
	"context"
	"strings"
	"time"

	"packready.org/internal/ids"
	"packready.org/internal/links"
)

func (s *Store) Add(ctx context.Context, link links.Link) (links.Link, error) {
	link.LessonID = strings.TrimSpace(link.LessonID)
	link.Title = strings.TrimSpace(link.Title)
	if link.LessonID == "" || link.Title == "" || !link.Kind.Valid() {
		return links.Link{}, links.ErrInvalidInput
	}
	if link.Kind == links.KindSection && strings.TrimSpace(link.SectionID) == "" {
		return links.Link{}, links.ErrInvalidInput
	}
	if link.Kind != links.KindSection && strings.TrimSpace(link.URL) == "" {
		return links.Link{}, links.ErrInvalidInput
	}

	link.ID = ids.New()
	link.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		insert into lesson_links(id, lesson_id, kind, title, url, section_id, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, link.ID, link.LessonID, link.Kind, link.Title, link.URL, link.SectionID, link.CreatedAt)
	if err != nil {
		return links.Link{}, err
	}
	return link, nil
}

func (s *Store) ListByLesson(ctx context.Context, lessonID string) ([]links.Link, error) {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return nil, links.ErrInvalidInput
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, lesson_id, kind, title, coalesce(url,''), coalesce(section_id,''), created_at
		from lesson_links where lesson_id=$1
		order by created_at asc, id asc
	`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []links.Link
	for rows.Next() {
		var l links.Link
		if err := rows.Scan(&l.ID, &l.LessonID, &l.Kind, &l.Title, &l.URL, &l.SectionID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
