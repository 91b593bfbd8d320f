package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed content/*.json
var Content embed.FS

//go:embed schema/knowledge_entry.json
var KnowledgeSchema []byte
