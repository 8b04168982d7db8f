package minidbtest

import (
	"github.com/brianvoe/gofakeit/v6"

	"github.com/RichardKnop/minidb/internal/minidb"
)

type DataGen struct {
	*gofakeit.Faker
}

func NewDataGen(seed int64) *DataGen {
	g := DataGen{
		Faker: gofakeit.New(seed),
	}

	return &g
}

// Record returns a record with a random key that fits the default schema.
func (g *DataGen) Record() minidb.Record {
	return g.RecordWithKey(g.Int32())
}

func (g *DataGen) RecordWithKey(key int32) minidb.Record {
	return minidb.Record{
		Key:      key,
		Username: truncate(g.Username(), minidb.DefaultSchema.UsernameSize),
		Email:    truncate(g.Email(), minidb.DefaultSchema.EmailSize),
	}
}

// Records returns records with unique random keys.
func (g *DataGen) Records(number int) []minidb.Record {
	var (
		records = make([]minidb.Record, 0, number)
		keyMap  = map[int32]struct{}{}
	)
	for len(records) < number {
		aRecord := g.Record()
		if _, ok := keyMap[aRecord.Key]; ok {
			continue
		}
		keyMap[aRecord.Key] = struct{}{}
		records = append(records, aRecord)
	}
	return records
}

// SequentialRecords returns records with keys from..from+number-1.
func (g *DataGen) SequentialRecords(from int32, number int) []minidb.Record {
	records := make([]minidb.Record, 0, number)
	for i := 0; i < number; i++ {
		records = append(records, g.RecordWithKey(from+int32(i)))
	}
	return records
}

func truncate(value string, size int) string {
	if len(value) <= size {
		return value
	}
	return value[:size]
}
