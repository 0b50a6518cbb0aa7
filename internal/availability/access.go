package availability

import "github.com/hitoshi/interne/internal/model"

// MembershipSet はユーザーが所属するコレクションIDの集合。
// 自分がオーナーのコレクションも含む。
type MembershipSet map[string]struct{}

// NewMembershipSet はコレクションIDのスライスから集合を生成する。
func NewMembershipSet(collectionIDs []string) MembershipSet {
	set := make(MembershipSet, len(collectionIDs))
	for _, id := range collectionIDs {
		set[id] = struct{}{}
	}
	return set
}

// Contains は集合にコレクションIDが含まれるかを返す。
func (m MembershipSet) Contains(collectionID string) bool {
	_, ok := m[collectionID]
	return ok
}

// CanView はユーザーがエントリを閲覧できるかを返す。
// 作成者であるか、エントリが所属するコレクションのメンバー（オーナー含む）であれば閲覧できる。
func CanView(e *model.Entry, userID string, memberships MembershipSet) bool {
	if e == nil || userID == "" {
		return false
	}
	if e.OwnerID == userID {
		return true
	}
	return e.CollectionID != nil && memberships.Contains(*e.CollectionID)
}

// CanMutate はユーザーがエントリを編集・削除できるかを返す。
// コレクションのメンバーシップは考慮せず、作成者のみを許可する。
func CanMutate(e *model.Entry, userID string) bool {
	if e == nil || userID == "" {
		return false
	}
	return e.OwnerID == userID
}
