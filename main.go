package main

import (
	"context"
	"log"
	"loopflow/bizerror"
	"loopflow/domain"
	"loopflow/domain/signature"
	"loopflow/domain/workflow"
	"loopflow/event"
	"loopflow/infra/tracing"
	"loopflow/persistence"
	"loopflow/servehttp"
	"loopflow/session"
	"net/http"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		log.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			log.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		log.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&domain.Loop{}, &domain.Party{}, &domain.Document{}, &domain.Task{},
		&workflow.WorkflowTemplate{}, &workflow.WorkflowInstance{},
		&signature.SignatureRequest{}, &signature.DocumentSignature{},
		&event.EventRecord{}).Error
	if err != nil {
		log.Fatalf("database migration failed %v\n", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "loopflow")
	})

	servehttp.RegisterWorkflowTemplateHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterSignatureHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterProgressHandler(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}
