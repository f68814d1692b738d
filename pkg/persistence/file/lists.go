package file

import (
	"context"
	"sort"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/persistence"
)

const (
	listsKind   = "lists"
	membersKind = "list_members"
)

// ListRepository stores lists and membership rows as JSON documents.
// Membership documents are keyed by "{list_id}__{user_id}".
type ListRepository struct {
	p *Persistence
}

func (r *ListRepository) GetByID(_ context.Context, id string) (*models.List, error) {
	var list models.List
	if err := r.p.read(listsKind, id, &list, persistence.ErrListNotFound); err != nil {
		return nil, err
	}

	return &list, nil
}

func (r *ListRepository) Save(_ context.Context, list *models.List) error {
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}

	list.UpdatedAt = time.Now().UTC()

	return r.p.write(listsKind, list.ID, list)
}

func (r *ListRepository) ByProject(_ context.Context, projectID string) ([]*models.List, error) {
	var lists []*models.List

	err := r.p.readEach(listsKind,
		func() any { return &models.List{} },
		func(item any) {
			list := item.(*models.List)
			if projectID == "" || list.ProjectID == projectID {
				lists = append(lists, list)
			}
		})
	if err != nil {
		return nil, err
	}

	sort.Slice(lists, func(i, k int) bool {
		return lists[i].CreatedAt.Before(lists[k].CreatedAt)
	})

	return lists, nil
}

func memberID(listID, userID string) string {
	return listID + "__" + userID
}

func (r *ListRepository) AddMember(ctx context.Context, member *models.ListMember) (bool, error) {
	var existing models.ListMember

	already := true

	err := r.p.read(membersKind, memberID(member.ListID, member.UserID), &existing, persistence.ErrListNotFound)
	if err != nil {
		if !persistence.IsNotFound(err) {
			return false, err
		}

		already = false
	}

	if already {
		// Re-adding refreshes the sweep version but keeps the original join
		// time.
		member.CreatedAt = existing.CreatedAt
	} else if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now().UTC()
	}

	if err := r.p.write(membersKind, memberID(member.ListID, member.UserID), member); err != nil {
		return false, err
	}

	return !already, nil
}

func (r *ListRepository) IsMember(_ context.Context, listID, userID string) (bool, error) {
	var member models.ListMember

	err := r.p.read(membersKind, memberID(listID, userID), &member, persistence.ErrListNotFound)
	if err != nil {
		if persistence.IsNotFound(err) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (r *ListRepository) Members(_ context.Context, listID string) ([]*models.ListMember, error) {
	var members []*models.ListMember

	err := r.p.readEach(membersKind,
		func() any { return &models.ListMember{} },
		func(item any) {
			member := item.(*models.ListMember)
			if member.ListID == listID {
				members = append(members, member)
			}
		})
	if err != nil {
		return nil, err
	}

	sort.Slice(members, func(i, k int) bool {
		return members[i].CreatedAt.Before(members[k].CreatedAt)
	})

	return members, nil
}

func (r *ListRepository) DeleteStaleMembers(ctx context.Context, listID string, version int64) error {
	members, err := r.Members(ctx, listID)
	if err != nil {
		return err
	}

	for _, member := range members {
		if member.Version < version {
			if err := r.p.remove(membersKind, memberID(member.ListID, member.UserID)); err != nil {
				return err
			}
		}
	}

	return nil
}
