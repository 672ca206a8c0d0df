package entities

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Column and card operations. Every operation leaves the order fields of the
// affected siblings contiguous from 0.

func (b *Board) columnIndex(columnID uuid.UUID) int {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return i
		}
	}
	return -1
}

func (b *Board) Column(columnID uuid.UUID) (*Column, error) {
	i := b.columnIndex(columnID)
	if i < 0 {
		return nil, ErrColumnNotFound
	}
	return &b.Columns[i], nil
}

func (b *Board) AddColumn(title string) *Column {
	b.Columns = append(b.Columns, Column{
		ID:      uuid.New(),
		BoardID: b.ID,
		Title:   title,
		Order:   len(b.Columns),
		Cards:   []Card{},
	})
	b.touch()
	return &b.Columns[len(b.Columns)-1]
}

func (b *Board) RenameColumn(columnID uuid.UUID, title string) (*Column, error) {
	col, err := b.Column(columnID)
	if err != nil {
		return nil, err
	}
	col.Title = title
	b.touch()
	return col, nil
}

// RemoveColumn deletes the column together with its cards.
func (b *Board) RemoveColumn(columnID uuid.UUID) (Column, error) {
	i := b.columnIndex(columnID)
	if i < 0 {
		return Column{}, ErrColumnNotFound
	}
	removed := b.Columns[i]
	b.Columns = slices.Delete(b.Columns, i, i+1)
	b.reindexColumns()
	b.touch()
	return removed, nil
}

func (b *Board) MoveColumn(columnID uuid.UUID, toIndex int) (*Column, error) {
	i := b.columnIndex(columnID)
	if i < 0 {
		return nil, ErrColumnNotFound
	}
	col := b.Columns[i]
	b.Columns = slices.Delete(b.Columns, i, i+1)
	to := clamp(toIndex, 0, len(b.Columns))
	b.Columns = slices.Insert(b.Columns, to, col)
	b.reindexColumns()
	b.touch()
	return &b.Columns[to], nil
}

func (b *Board) reindexColumns() {
	for i := range b.Columns {
		b.Columns[i].Order = i
	}
}

func (c *Column) reindexCards() {
	for i := range c.Cards {
		c.Cards[i].Order = i
	}
}

func (b *Board) findCard(cardID uuid.UUID) (int, int) {
	for ci := range b.Columns {
		for ki := range b.Columns[ci].Cards {
			if b.Columns[ci].Cards[ki].ID == cardID {
				return ci, ki
			}
		}
	}
	return -1, -1
}

func (b *Board) Card(cardID uuid.UUID) (*Card, error) {
	ci, ki := b.findCard(cardID)
	if ci < 0 {
		return nil, ErrCardNotFound
	}
	return &b.Columns[ci].Cards[ki], nil
}

// CheckAssignee accepts nil or an accepted member's user id.
func (b *Board) CheckAssignee(assigneeID *uuid.UUID) error {
	if assigneeID != nil && !b.IsMember(*assigneeID) {
		return ErrAssigneeNotMember
	}
	return nil
}

// AddCard appends card to the column, assigning id, column and order.
func (b *Board) AddCard(columnID uuid.UUID, card Card) (*Card, error) {
	ci := b.columnIndex(columnID)
	if ci < 0 {
		return nil, ErrColumnNotFound
	}
	if err := b.CheckAssignee(card.AssigneeID); err != nil {
		return nil, err
	}

	col := &b.Columns[ci]
	now := time.Now().UTC()
	card.ID = uuid.New()
	card.ColumnID = col.ID
	card.Order = len(col.Cards)
	if card.Labels == nil {
		card.Labels = []string{}
	}
	card.CreatedAt = now
	card.UpdatedAt = now

	col.Cards = append(col.Cards, card)
	b.touch()
	return &col.Cards[len(col.Cards)-1], nil
}

func (b *Board) RemoveCard(cardID uuid.UUID) (Card, error) {
	ci, ki := b.findCard(cardID)
	if ci < 0 {
		return Card{}, ErrCardNotFound
	}
	col := &b.Columns[ci]
	removed := col.Cards[ki]
	col.Cards = slices.Delete(col.Cards, ki, ki+1)
	col.reindexCards()
	b.touch()
	return removed, nil
}

// MoveCard removes the card from its column and inserts it into toColumnID at
// toIndex, clamped to the target length.
func (b *Board) MoveCard(cardID, toColumnID uuid.UUID, toIndex int) (*CardMove, error) {
	ci, ki := b.findCard(cardID)
	if ci < 0 {
		return nil, ErrCardNotFound
	}
	ti := b.columnIndex(toColumnID)
	if ti < 0 {
		return nil, ErrColumnNotFound
	}

	src := &b.Columns[ci]
	card := src.Cards[ki]
	src.Cards = slices.Delete(src.Cards, ki, ki+1)
	src.reindexCards()

	dst := &b.Columns[ti]
	to := clamp(toIndex, 0, len(dst.Cards))
	card.ColumnID = dst.ID
	card.UpdatedAt = time.Now().UTC()
	dst.Cards = slices.Insert(dst.Cards, to, card)
	dst.reindexCards()
	b.touch()

	return &CardMove{
		Card:         dst.Cards[to],
		FromColumnID: src.ID,
		ToColumnID:   dst.ID,
		FromIndex:    ki,
		ToIndex:      to,
	}, nil
}

func (b *Board) EachCard(fn func(col *Column, card *Card)) {
	for ci := range b.Columns {
		col := &b.Columns[ci]
		for ki := range col.Cards {
			fn(col, &col.Cards[ki])
		}
	}
}

func (b *Board) CardCount() int {
	n := 0
	for _, col := range b.Columns {
		n += len(col.Cards)
	}
	return n
}

func (c *Card) IsOverdue(now time.Time) bool {
	return c.DueDate != nil && c.DueDate.Before(now)
}

// DueWithin reports whether the card is due in (now, now+window].
func (c *Card) DueWithin(now time.Time, window time.Duration) bool {
	return c.DueDate != nil && c.DueDate.After(now) && !c.DueDate.After(now.Add(window))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NextDueAt returns the earliest card due date on the board, or nil.
func (b *Board) NextDueAt() *time.Time {
	var next *time.Time
	b.EachCard(func(_ *Column, c *Card) {
		if c.DueDate != nil && (next == nil || c.DueDate.Before(*next)) {
			d := *c.DueDate
			next = &d
		}
	})
	return next
}

// CardPatch is a partial card update. Nil fields are left unchanged.
type CardPatch struct {
	Title         *string
	Description   *string
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
	Labels        []string
}

// UpdateCard applies p to the card. The assignee must be an accepted member.
func (b *Board) UpdateCard(cardID uuid.UUID, p CardPatch) (*Card, error) {
	card, err := b.Card(cardID)
	if err != nil {
		return nil, err
	}
	if err := b.CheckAssignee(p.AssigneeID); err != nil {
		return nil, err
	}

	if p.Title != nil {
		card.Title = *p.Title
	}
	if p.Description != nil {
		card.Description = *p.Description
	}
	switch {
	case p.ClearAssignee:
		card.AssigneeID = nil
	case p.AssigneeID != nil:
		id := *p.AssigneeID
		card.AssigneeID = &id
	}
	switch {
	case p.ClearDueDate:
		card.DueDate = nil
	case p.DueDate != nil:
		due := p.DueDate.UTC()
		card.DueDate = &due
	}
	if p.Labels != nil {
		card.Labels = slices.Clone(p.Labels)
	}

	card.UpdatedAt = time.Now().UTC()
	b.touch()
	return card, nil
}
