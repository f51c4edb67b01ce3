package handlers

import (
	"github.com/outreachly/outreach-service/internal/database"
	"github.com/outreachly/outreach-service/internal/storage"
	"github.com/outreachly/outreach-service/internal/taskqueue"
	"github.com/outreachly/outreach-service/internal/tracking"
)

var (
	artifacts storage.Storage
	recorder  *tracking.Recorder
)

// Init wires the shared handler dependencies. Must be called once at
// startup before any route is served.
func Init(artifactStore storage.Storage, trackingRecorder *tracking.Recorder) {
	artifacts = artifactStore
	recorder = trackingRecorder
}

func store() *database.Store {
	return database.NewStore(database.Pool())
}

func queue() *taskqueue.TaskQueue {
	return taskqueue.New(database.Pool())
}
