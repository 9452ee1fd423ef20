package action

import (
	"bytes"
	"fmt"
	"slices"
)

type Type uint8

const (
	TypeAdd    Type = 0
	TypeRemove Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeAdd:
		return "add"
	case TypeRemove:
		return "remove"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Action is an instruction to make content available offline or to remove it.
// Values are never mutated after construction; Merge returns a new Action.
type Action struct {
	Format     string
	Version    int
	Type       Type
	ContentID  string
	SubKeys    []SubKey
	CustomData []byte
}

// NewAdd builds an add action. An empty key set means all sub content.
func NewAdd(format string, version int, contentID string, keys []SubKey, data []byte) Action {
	return Action{
		Format:     format,
		Version:    version,
		Type:       TypeAdd,
		ContentID:  contentID,
		SubKeys:    NormalizeKeys(keys),
		CustomData: bytes.Clone(data),
	}
}

// NewRemove builds a remove-all action for contentID.
func NewRemove(format string, version int, contentID string, data []byte) Action {
	return Action{
		Format:     format,
		Version:    version,
		Type:       TypeRemove,
		ContentID:  contentID,
		CustomData: bytes.Clone(data),
	}
}

func (a Action) IsRemove() bool {
	return a.Type == TypeRemove
}

func (a Action) SameContent(other Action) bool {
	return a.ContentID == other.ContentID
}

// AllKeys reports whether an add action targets every sub key of its content.
func (a Action) AllKeys() bool {
	return !a.IsRemove() && len(a.SubKeys) == 0
}

// Covers reports whether every key of other is already requested by a.
func (a Action) Covers(other Action) bool {
	if a.AllKeys() {
		return true
	}
	if other.AllKeys() {
		return false
	}
	for _, k := range other.SubKeys {
		if _, found := slices.BinarySearchFunc(a.SubKeys, k, CompareKeys); !found {
			return false
		}
	}
	return true
}

// Merge combines two add actions for the same content: the key sets are
// united, non-empty custom data from other wins and the higher version is kept.
func (a Action) Merge(other Action) (Action, error) {
	if !a.SameContent(other) {
		return Action{}, fmt.Errorf("cannot merge actions for %q and %q", a.ContentID, other.ContentID)
	}
	if a.IsRemove() || other.IsRemove() {
		return Action{}, fmt.Errorf("cannot merge remove action for %q", a.ContentID)
	}
	merged := a.Clone()
	switch {
	case a.AllKeys() || other.AllKeys():
		merged.SubKeys = nil
	default:
		merged.SubKeys = NormalizeKeys(append(slices.Clone(a.SubKeys), other.SubKeys...))
	}
	if len(other.CustomData) > 0 {
		merged.CustomData = bytes.Clone(other.CustomData)
	}
	merged.Version = max(a.Version, other.Version)
	return merged, nil
}

func (a Action) Clone() Action {
	c := a
	c.SubKeys = slices.Clone(a.SubKeys)
	c.CustomData = bytes.Clone(a.CustomData)
	return c
}

func (a Action) Equal(other Action) bool {
	return a.Format == other.Format &&
		a.Version == other.Version &&
		a.Type == other.Type &&
		a.ContentID == other.ContentID &&
		slices.Equal(a.SubKeys, other.SubKeys) &&
		bytes.Equal(a.CustomData, other.CustomData)
}

func (a Action) String() string {
	keys := "all"
	if a.IsRemove() {
		keys = "-"
	} else if len(a.SubKeys) > 0 {
		keys = FormatKeys(a.SubKeys)
	}
	return fmt.Sprintf("%s %s/v%d %s [%s]", a.Type, a.Format, a.Version, a.ContentID, keys)
}
