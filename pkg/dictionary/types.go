package dictionary

import "github.com/bastiangx/imecore/internal/storage"

// WordEntry is an indivisible (text, pinyin, frequency, dict_id, priority)
// tuple as loaded from a dictionary file. (text, pinyin) is its logical key.
type WordEntry struct {
	Text         string
	Pinyin       string
	Frequency    int64
	DictID       string
	DictPriority int32
}

// Dictionary mirrors storage.DictMeta plus its loaded-ness, which is
// orthogonal to enabled-ness (§3).
type Dictionary struct {
	storage.DictMeta
	Loaded bool
}

// Type aliases kept for call sites that only ever deal in dictionary types.
type (
	DictType       = storage.DictType
	DownloadStatus = storage.DownloadStatus
)

const (
	Base     = storage.DictBase
	Extended = storage.DictExtended
	Industry = storage.DictIndustry
	User     = storage.DictUser
)
