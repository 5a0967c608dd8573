package db

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PostgresFunction struct {
	Name       string
	Definition string
}

// matchMessagesFunction ranks messages with a stored embedding by cosine similarity.
// Equal similarities are ordered oldest first.
const matchMessagesFunction = `
CREATE OR REPLACE FUNCTION match_messages(query_embedding vector, match_threshold float, match_count int)
RETURNS TABLE (id uuid, content text, similarity float)
LANGUAGE sql STABLE
AS $$
	SELECT m.id, m.content, 1 - (m.embedding <=> query_embedding) AS similarity
	FROM messages m
	WHERE m.embedding IS NOT NULL
		AND 1 - (m.embedding <=> query_embedding) > match_threshold
	ORDER BY similarity DESC, m.created_at ASC, m.id ASC
	LIMIT match_count;
$$;
`

var PostgresFunctions = []PostgresFunction{
	{
		Name:       "match_messages",
		Definition: matchMessagesFunction,
	},
}

func syncPostgresFunctions(db *gorm.DB) error {
	for _, pgFunc := range PostgresFunctions {
		flog := log.WithField("function", pgFunc.Name)
		if res := db.Exec(pgFunc.Definition); res.Error != nil {
			flog.WithError(res.Error).Error("error creating postgres function")
			return res.Error
		}
		flog.Debug("postgres function synced")
	}
	return nil
}
