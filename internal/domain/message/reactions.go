package message

// Reactor is one user attached to a reaction.
type Reactor struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
}

// ReactionGroup collects every reactor of one reaction kind on a message.
// A group never exists with zero reactors.
type ReactionGroup struct {
	Kind     string    `json:"id"`
	Reactors []Reactor `json:"reactors"`
}

// ToggleReaction adds the user to the reaction group of the given kind or, when
// already present, removes them. Groups left empty are dropped. The returned
// flag is true when a reactor was added.
func (m *Message) ToggleReaction(kind, userID, displayName string) bool {
	gi := -1
	for i := range m.Reactions {
		if m.Reactions[i].Kind == kind {
			gi = i
			break
		}
	}

	if gi == -1 {
		m.Reactions = append(m.Reactions, ReactionGroup{
			Kind:     kind,
			Reactors: []Reactor{{UserID: userID, DisplayName: displayName}},
		})
		return true
	}

	group := &m.Reactions[gi]
	for ri := range group.Reactors {
		if group.Reactors[ri].UserID != userID {
			continue
		}
		group.Reactors = append(group.Reactors[:ri], group.Reactors[ri+1:]...)
		if len(group.Reactors) == 0 {
			m.Reactions = append(m.Reactions[:gi], m.Reactions[gi+1:]...)
		}
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
		return false
	}

	group.Reactors = append(group.Reactors, Reactor{UserID: userID, DisplayName: displayName})
	return true
}
