package entities

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Board is the top-level container. It is persisted as a single document, so every
// mutation below works on the in-memory copy and the caller writes it back.
type Board struct {
	ID          uuid.UUID   `json:"id" bson:"_id"`
	Title       string      `json:"title" bson:"title"`
	Description string      `json:"description" bson:"description"`
	Background  string      `json:"background" bson:"background"`
	Starred     bool        `json:"starred" bson:"starred"`
	Members     []Member    `json:"members" bson:"members"`
	MemberIDs   []uuid.UUID `json:"memberIds" bson:"member_ids"`
	Columns     []Column    `json:"columns" bson:"columns"`
	CreatedBy   uuid.UUID   `json:"createdBy" bson:"created_by"`
	Version     int64       `json:"version" bson:"version"`
	CreatedAt   time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updated_at"`
}

// Column is an ordered bucket of cards.
type Column struct {
	ID      uuid.UUID `json:"id" bson:"id"`
	BoardID uuid.UUID `json:"boardId" bson:"board_id"`
	Title   string    `json:"title" bson:"title"`
	Order   int       `json:"order" bson:"order"`
	Cards   []Card    `json:"cards" bson:"cards"`
}

// Card is a work item inside a column.
type Card struct {
	ID          uuid.UUID  `json:"id" bson:"id"`
	ColumnID    uuid.UUID  `json:"columnId" bson:"column_id"`
	Title       string     `json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	Order       int        `json:"order" bson:"order"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty" bson:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"due_date,omitempty"`
	Labels      []string   `json:"labels" bson:"labels"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`
}

// Member is a user's access record on a board. A pending member is an invitation.
type Member struct {
	ID        uuid.UUID    `json:"id" bson:"id"`
	UserID    *uuid.UUID   `json:"userId,omitempty" bson:"user_id,omitempty"`
	Email     string       `json:"email" bson:"email"`
	Name      string       `json:"name" bson:"name"`
	Avatar    string       `json:"avatar" bson:"avatar"`
	Role      MemberRole   `json:"role" bson:"role"`
	Status    MemberStatus `json:"status" bson:"status"`
	JoinedAt  *time.Time   `json:"joinedAt,omitempty" bson:"joined_at,omitempty"`
	CreatedAt time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" bson:"updated_at"`
}

// CardMove describes the result of MoveCard.
type CardMove struct {
	Card         Card
	FromColumnID uuid.UUID
	ToColumnID   uuid.UUID
	FromIndex    int
	ToIndex      int
}

// NewBoard creates a board whose only member is the creator, as admin.
func NewBoard(title, description, background string, creator *User) *Board {
	now := time.Now().UTC()
	userID := creator.ID
	joined := now

	b := &Board{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Background:  background,
		Members: []Member{{
			ID:        uuid.New(),
			UserID:    &userID,
			Email:     normalizeEmail(creator.Email),
			Name:      creator.DisplayName(),
			Avatar:    creator.AvatarURL,
			Role:      MemberRoleAdmin,
			Status:    MemberStatusAccepted,
			JoinedAt:  &joined,
			CreatedAt: now,
			UpdatedAt: now,
		}},
		Columns:   []Column{},
		CreatedBy: creator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.syncMemberIDs()
	return b
}

func (b *Board) touch() {
	b.UpdatedAt = time.Now().UTC()
}

// Membership

func (b *Board) IsMember(userID uuid.UUID) bool {
	return slices.Contains(b.MemberIDs, userID)
}

// MemberForUser returns the accepted member record of userID, or nil.
func (b *Board) MemberForUser(userID uuid.UUID) *Member {
	for i := range b.Members {
		m := &b.Members[i]
		if m.Status == MemberStatusAccepted && m.UserID != nil && *m.UserID == userID {
			return m
		}
	}
	return nil
}

func (b *Board) IsAdmin(userID uuid.UUID) bool {
	m := b.MemberForUser(userID)
	return m != nil && m.Role == MemberRoleAdmin
}

// AdminIDs returns the user ids of accepted admins.
func (b *Board) AdminIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range b.Members {
		if m.Status == MemberStatusAccepted && m.Role == MemberRoleAdmin && m.UserID != nil {
			ids = append(ids, *m.UserID)
		}
	}
	return ids
}

func (b *Board) Member(memberID uuid.UUID) (*Member, error) {
	for i := range b.Members {
		if b.Members[i].ID == memberID {
			return &b.Members[i], nil
		}
	}
	return nil, ErrMemberNotFound
}

// PendingInvitationsFor returns pending member records addressed to email.
func (b *Board) PendingInvitationsFor(email string) []Member {
	var out []Member
	for _, m := range b.Members {
		if m.Status == MemberStatusPending && strings.EqualFold(m.Email, normalizeEmail(email)) {
			out = append(out, m)
		}
	}
	return out
}

func (b *Board) memberIndexByEmail(email string) int {
	email = normalizeEmail(email)
	for i := range b.Members {
		if strings.EqualFold(b.Members[i].Email, email) {
			return i
		}
	}
	return -1
}

// Invite adds a pending member for email. An email that already has a record is
// rejected unless that record was a rejected invitation, which is re-opened.
func (b *Board) Invite(email, name string, role MemberRole, userID *uuid.UUID) (*Member, error) {
	if role == "" {
		role = MemberRoleMember
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	now := time.Now().UTC()
	if i := b.memberIndexByEmail(email); i >= 0 {
		m := &b.Members[i]
		if m.Status != MemberStatusRejected {
			return nil, ErrAlreadyMember
		}
		m.Status = MemberStatusPending
		m.Role = role
		m.UserID = userID
		m.JoinedAt = nil
		m.UpdatedAt = now
		b.syncMemberIDs()
		b.touch()
		return m, nil
	}

	b.Members = append(b.Members, Member{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     normalizeEmail(email),
		Name:      name,
		Role:      role,
		Status:    MemberStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	b.touch()
	return &b.Members[len(b.Members)-1], nil
}

func (b *Board) pendingInvitationFor(memberID uuid.UUID, user *User) (*Member, error) {
	m, err := b.Member(memberID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(m.Email, normalizeEmail(user.Email)) {
		return nil, ErrForbidden
	}
	if m.Status != MemberStatusPending {
		return nil, ErrInvitationNotPending
	}
	return m, nil
}

// AcceptInvitation binds the invitation to user and grants access.
func (b *Board) AcceptInvitation(memberID uuid.UUID, user *User) (*Member, error) {
	m, err := b.pendingInvitationFor(memberID, user)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userID := user.ID
	m.UserID = &userID
	m.Status = MemberStatusAccepted
	if m.Name == "" {
		m.Name = user.DisplayName()
	}
	m.Avatar = user.AvatarURL
	m.JoinedAt = &now
	m.UpdatedAt = now

	b.syncMemberIDs()
	b.touch()
	return m, nil
}

func (b *Board) RejectInvitation(memberID uuid.UUID, user *User) (*Member, error) {
	m, err := b.pendingInvitationFor(memberID, user)
	if err != nil {
		return nil, err
	}
	m.Status = MemberStatusRejected
	m.UpdatedAt = time.Now().UTC()
	b.touch()
	return m, nil
}

func (b *Board) adminCount() int {
	return len(b.AdminIDs())
}

func (b *Board) isLastAdmin(m *Member) bool {
	return m.Status == MemberStatusAccepted && m.Role == MemberRoleAdmin && b.adminCount() <= 1
}

func (b *Board) SetMemberRole(memberID uuid.UUID, role MemberRole) (*Member, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	m, err := b.Member(memberID)
	if err != nil {
		return nil, err
	}
	if role != MemberRoleAdmin && b.isLastAdmin(m) {
		return nil, ErrLastAdmin
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	b.touch()
	return m, nil
}

// RemoveMember drops the member record and unassigns their cards.
func (b *Board) RemoveMember(memberID uuid.UUID) (Member, error) {
	m, err := b.Member(memberID)
	if err != nil {
		return Member{}, err
	}
	if b.isLastAdmin(m) {
		return Member{}, ErrLastAdmin
	}
	removed := *m

	b.Members = slices.DeleteFunc(b.Members, func(x Member) bool { return x.ID == memberID })
	if removed.UserID != nil {
		b.EachCard(func(_ *Column, c *Card) {
			if c.AssigneeID != nil && *c.AssigneeID == *removed.UserID {
				c.AssigneeID = nil
			}
		})
	}
	b.syncMemberIDs()
	b.touch()
	return removed, nil
}

// UpdateMemberProfile refreshes name and avatar on every record bound to userID.
func (b *Board) UpdateMemberProfile(userID uuid.UUID, name, avatar string) bool {
	changed := false
	for i := range b.Members {
		m := &b.Members[i]
		if m.UserID != nil && *m.UserID == userID && (m.Name != name || m.Avatar != avatar) {
			m.Name = name
			m.Avatar = avatar
			m.UpdatedAt = time.Now().UTC()
			changed = true
		}
	}
	return changed
}

// memberIds mirrors the accepted members and is what access queries index on.
func (b *Board) syncMemberIDs() {
	ids := make([]uuid.UUID, 0, len(b.Members))
	for _, m := range b.Members {
		if m.Status == MemberStatusAccepted && m.UserID != nil && !slices.Contains(ids, *m.UserID) {
			ids = append(ids, *m.UserID)
		}
	}
	b.MemberIDs = ids
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PendingEmails lists the addresses with an open invitation.
func (b *Board) PendingEmails() []string {
	emails := []string{}
	for _, m := range b.Members {
		if m.Status == MemberStatusPending && !slices.Contains(emails, m.Email) {
			emails = append(emails, m.Email)
		}
	}
	return emails
}

// Clone returns a deep copy of the board.
func (b *Board) Clone() *Board {
	out := *b
	out.MemberIDs = slices.Clone(b.MemberIDs)
	out.Members = make([]Member, len(b.Members))
	for i, m := range b.Members {
		if m.UserID != nil {
			id := *m.UserID
			m.UserID = &id
		}
		if m.JoinedAt != nil {
			t := *m.JoinedAt
			m.JoinedAt = &t
		}
		out.Members[i] = m
	}
	out.Columns = make([]Column, len(b.Columns))
	for i, col := range b.Columns {
		cards := make([]Card, len(col.Cards))
		for j, c := range col.Cards {
			if c.AssigneeID != nil {
				id := *c.AssigneeID
				c.AssigneeID = &id
			}
			if c.DueDate != nil {
				t := *c.DueDate
				c.DueDate = &t
			}
			c.Labels = slices.Clone(c.Labels)
			cards[j] = c
		}
		col.Cards = cards
		out.Columns[i] = col
	}
	return &out
}

// UpdateDetails applies the non-nil fields.
func (b *Board) UpdateDetails(title, description, background *string, starred *bool) {
	if title != nil {
		b.Title = *title
	}
	if description != nil {
		b.Description = *description
	}
	if background != nil {
		b.Background = *background
	}
	if starred != nil {
		b.Starred = *starred
	}
	b.touch()
}
