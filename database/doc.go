// Package database persists aligned transcripts with gorm on sqlite.
//
// A record keeps the speaker turns with their raw ids, the distinct speakers
// and the current mapping, so a transcript can be renamed and exported again
// long after the run:
//
//	db, err := database.Open(ctx, cfg, log)
//	repo := database.NewRepository(db)
//	err = repo.Save(ctx, database.NewRecord(res, artifacts))
//	rec, err := repo.UpdateMapping(ctx, id, speakers.Mapping{"SPEAKER_00": "Alice"})
//
// Lookups of unknown ids fail with NOT_FOUND.
package database
