package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"checklist-cli/internal/model"
	"checklist-cli/internal/mutate"
)

var ErrInvalidItem = errors.New("invalid checklist item")

func normalizeSection(s model.Section) (model.Section, error) {
	switch v := model.Section(strings.ToLower(strings.TrimSpace(string(s)))); v {
	case "":
		return model.SectionInspection, nil
	case model.SectionInspection, model.SectionMaintenance, model.SectionSafety:
		return v, nil
	default:
		return "", fmt.Errorf("%w: section %q (expected inspection|maintenance|safety)", ErrInvalidItem, s)
	}
}

func normalizeOptionType(o model.OptionType) (model.OptionType, error) {
	switch v := model.OptionType(strings.ToLower(strings.TrimSpace(string(o)))); v {
	case "":
		return model.OptionCheckbox, nil
	case model.OptionCheckbox, model.OptionPassFail, model.OptionValue:
		return v, nil
	default:
		return "", fmt.Errorf("%w: option type %q (expected checkbox|pass_fail|value)", ErrInvalidItem, o)
	}
}

// CreateItem appends a checklist item to a part. Section and option type
// default to inspection and checkbox.
func (s *Store) CreateItem(ctx context.Context, partID string, it model.ChecklistItem) (model.ChecklistItem, error) {
	it.Text = strings.TrimSpace(it.Text)
	if it.Text == "" {
		return model.ChecklistItem{}, fmt.Errorf("%w: empty text", ErrInvalidItem)
	}
	var err error
	if it.Section, err = normalizeSection(it.Section); err != nil {
		return model.ChecklistItem{}, err
	}
	if it.OptionType, err = normalizeOptionType(it.OptionType); err != nil {
		return model.ChecklistItem{}, err
	}
	it.Description = strings.TrimSpace(it.Description)
	it.PartID = strings.TrimSpace(partID)
	if it.ID, err = newID(prefixItem); err != nil {
		return model.ChecklistItem{}, err
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := s.exists(ctx, tx, "parts", it.PartID)
		if err != nil {
			return err
		}
		if !ok {
			return mutate.NotFoundError{Kind: model.KindPart, ID: it.PartID}
		}
		last, err := s.lastRank(ctx, tx, "items", "part_id", it.PartID)
		if err != nil {
			return err
		}
		r, err := nextRank(last)
		if err != nil {
			return err
		}
		_, err = s.exec(ctx, tx,
			`INSERT INTO items(id, part_id, text, section, option_type, description, rank) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			it.ID, it.PartID, it.Text, string(it.Section), string(it.OptionType), it.Description, r)
		return err
	})
	if err != nil {
		return model.ChecklistItem{}, err
	}
	it.Attachments = []model.Attachment{}
	return it, nil
}

// Items lists a part's checklist items in order, each with its attachments.
func (s *Store) Items(ctx context.Context, partID string) ([]model.ChecklistItem, error) {
	partID = strings.TrimSpace(partID)
	ok, err := s.exists(ctx, s.db, "parts", partID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mutate.NotFoundError{Kind: model.KindPart, ID: partID}
	}
	items, ranks, err := s.scanItems(ctx, `SELECT id, part_id, text, section, option_type, description, rank FROM items WHERE part_id = ?`, partID)
	if err != nil {
		return nil, err
	}
	sibs := make([]sibling, len(items))
	byID := make(map[string]model.ChecklistItem, len(items))
	for i, it := range items {
		sibs[i] = sibling{ID: it.ID, Rank: ranks[i]}
		byID[it.ID] = it
	}
	sortSiblings(sibs)
	out := make([]model.ChecklistItem, 0, len(items))
	for _, sb := range sibs {
		it := byID[sb.ID]
		if it.Attachments, err = s.attachmentsFor(ctx, it.ID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) Item(ctx context.Context, id string) (model.ChecklistItem, error) {
	id = strings.TrimSpace(id)
	items, _, err := s.scanItems(ctx, `SELECT id, part_id, text, section, option_type, description, rank FROM items WHERE id = ?`, id)
	if err != nil {
		return model.ChecklistItem{}, err
	}
	if len(items) == 0 {
		return model.ChecklistItem{}, fmt.Errorf("item not found: %s: %w", id, mutate.ErrNotFound)
	}
	it := items[0]
	if it.Attachments, err = s.attachmentsFor(ctx, it.ID); err != nil {
		return model.ChecklistItem{}, err
	}
	return it, nil
}

func (s *Store) scanItems(ctx context.Context, query string, args ...any) ([]model.ChecklistItem, []string, error) {
	rs, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rs.Close()
	var items []model.ChecklistItem
	var ranks []string
	for rs.Next() {
		var it model.ChecklistItem
		var section, opt, rank string
		if err := rs.Scan(&it.ID, &it.PartID, &it.Text, &section, &opt, &it.Description, &rank); err != nil {
			return nil, nil, err
		}
		it.Section = model.Section(section)
		it.OptionType = model.OptionType(opt)
		items = append(items, it)
		ranks = append(ranks, rank)
	}
	return items, ranks, rs.Err()
}

func (s *Store) attachmentsFor(ctx context.Context, itemID string) ([]model.Attachment, error) {
	rs, err := s.query(ctx, s.db,
		`SELECT id, item_id, filename, mime_type, size_bytes, created_at_unixms FROM attachments WHERE item_id = ? ORDER BY created_at_unixms, id`,
		itemID)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	out := []model.Attachment{}
	for rs.Next() {
		a, err := scanAttachment(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rs.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(sc scanner) (model.Attachment, error) {
	var a model.Attachment
	var createdMs int64
	if err := sc.Scan(&a.ID, &a.ChecklistItemID, &a.Filename, &a.MimeType, &a.Size, &createdMs); err != nil {
		return model.Attachment{}, err
	}
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.URL = AttachmentURL(a.ID)
	return a, nil
}
