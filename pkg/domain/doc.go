package domain

// domain package contains the Domain Models of the pipeline monitor.
//
// `domain/imagedb` package exposes the root object bundling the stores over one connection pool.
// Entrypoints of applications should instantiate it and use it to interact with the domain.
//
// `domain/ENTITY.go` has high-level entities (Domain Model types) and pure functions over them.
// For example, `domain/pipeline.go` contains the `PipelineDefinition` entity and its validation.
//
// `domain/ENTITY/db` directory contains the store interface of the entity, and
// `domain/ENTITY/db/postgres` implements it on the relational store.
//
// # Entities
//
// - `acquisition`: a finished plate imaging run. Read only.
// The monitor looks for acquisitions which are neither in the submission ledger nor analysed.
//
// - `rule`: automation rules. They map (project, cell line, channel map) to pipelines.
// Wildcards ("*" for cell line, -1 for channel map) broaden matching.
//
// - `pipeline`: named templates of analyses. A template is an ordered list of steps
// and analysis level metadata.
//
// - `analysis`: one submission of a pipeline for an acquisition.
// It is expanded to a chain of sub-analyses, each depending on the previous step.
// Submission and expansion is atomic.
