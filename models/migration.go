package models

import (
	"log"

	"github.com/ardaops/kanban_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&KanbanLoop{}, &KanbanCard{}, &CardTransition{},
		&LifecycleEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
