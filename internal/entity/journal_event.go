package entity

type JournalEvent struct {
	Id        int64
	EntryId   int64
	Content   string
	Embedding []float32
}
