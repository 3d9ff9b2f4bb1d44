// Package resolver loads the inventory, workflow, and stage metadata
// documents and produces the ordered list of stage descriptors for a run.
//
// Resolution performs reads only: no directory is created and no process is
// started here, so a failed resolution leaves no trace on disk.
package resolver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/stagerun/stagerun/pkg/models"
)

// WorkflowSource discriminates which workflow lookup candidate was used.
type WorkflowSource string

const (
	// WorkflowSourceEnvironment means the environment-type-specific document
	// was found and used.
	WorkflowSourceEnvironment WorkflowSource = "environment"

	// WorkflowSourceBase means the shared base document was used as fallback.
	WorkflowSourceBase WorkflowSource = "base"
)

// Document shapes checked before strict binding. The inventory must carry a
// 'stages' sequence of ids; the workflow must carry 'stages'.
var (
	inventorySchema = map[string]any{
		"type":     "object",
		"required": []any{"stages"},
		"properties": map[string]any{
			"stages": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"env_vars": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
		},
	}

	workflowSchema = map[string]any{
		"type":     "object",
		"required": []any{"stages"},
		"properties": map[string]any{
			"stages": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	stageSchema = map[string]any{
		"type": "object",
		"properties": map[string]any{
			"cfg_keys": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"env_vars": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
		},
	}
)

// Resolver resolves run documents relative to one pipeline root.
type Resolver struct {
	root     string
	logger   *slog.Logger
	validate *validator.Validate
}

func New(root string, logger *slog.Logger) *Resolver {
	return &Resolver{
		root:     root,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// InventoryPath returns the document path for a named inventory.
func (r *Resolver) InventoryPath(inventory string) string {
	return filepath.Join(r.root, "pipeline", "inventory", inventory+".yaml")
}

// StageMetadataPath returns the stage.yaml path for a stage id.
func (r *Resolver) StageMetadataPath(id string) string {
	return filepath.Join(r.root, "pipeline", "stages", id, "stage.yaml")
}

// StageEntryPoint returns the external entry point invoked for a stage id.
func (r *Resolver) StageEntryPoint(id string) string {
	return filepath.Join(r.root, "pipeline", "stages", id, "run", "local.sh")
}

// LocateInventory resolves the inventory document path, failing if the
// document does not exist.
func (r *Resolver) LocateInventory(inventory string) (string, error) {
	path := r.InventoryPath(inventory)
	if _, err := os.Stat(path); err != nil {
		return "", &DocumentError{Path: path, Err: ErrInventoryNotFound}
	}

	return path, nil
}

// LocateWorkflow performs the two-candidate workflow lookup: the
// environment-type-specific document first, then the shared base document
// for the same inventory. The returned WorkflowSource reports which
// candidate was used.
func (r *Resolver) LocateWorkflow(envType, inventory, workflow string) (string, WorkflowSource, error) {
	envPath := filepath.Join(r.root, "pipeline", "workflows", envType, inventory, workflow+".yaml")
	if _, err := os.Stat(envPath); err == nil {
		return envPath, WorkflowSourceEnvironment, nil
	}

	basePath := filepath.Join(r.root, "pipeline", "workflows", "base", inventory, workflow+".yaml")
	if _, err := os.Stat(basePath); err == nil {
		return basePath, WorkflowSourceBase, nil
	}

	return "", "", &DocumentError{
		Path: workflow + ".yaml",
		Err:  fmt.Errorf("%w in %s or base", ErrWorkflowNotFound, envType),
	}
}

// Resolve loads the inventory and workflow documents, checks every workflow
// stage against the inventory's stage set, loads each active stage's
// metadata, and returns the active stage ids in workflow declaration order
// together with their descriptors.
func (r *Resolver) Resolve(inventoryPath, workflowPath string) ([]string, []models.StageDescriptor, error) {
	inventory, err := r.loadInventory(inventoryPath)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("Loaded inventory document", "path", inventoryPath, "stages", len(inventory.Stages))

	workflow, err := r.loadWorkflow(workflowPath)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("Loaded workflow document", "path", workflowPath, "stages", len(workflow.Stages))

	activeIDs := make([]string, 0, len(workflow.Stages))

	for _, id := range workflow.Stages {
		if !inventory.HasStage(id) {
			return nil, nil, fmt.Errorf("%w: %q (inventory %s)", ErrUnknownStage, id, inventoryPath)
		}

		activeIDs = append(activeIDs, id)
	}

	descriptors, err := r.buildDescriptors(inventory, activeIDs)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("Resolved active stages", "stages", activeIDs)

	return activeIDs, descriptors, nil
}

func (r *Resolver) buildDescriptors(inventory *models.Inventory, activeIDs []string) ([]models.StageDescriptor, error) {
	descriptors := make([]models.StageDescriptor, 0, len(activeIDs))

	for _, id := range activeIDs {
		metaPath := r.StageMetadataPath(id)

		spec, err := r.loadStageSpec(metaPath)
		if err != nil {
			return nil, err
		}

		descriptors = append(descriptors, models.StageDescriptor{
			ID:           id,
			CfgKeys:      spec.CfgKeys,
			EntryPoint:   r.StageEntryPoint(id),
			InventoryEnv: inventory.EnvVars,
			StageEnv:     spec.EnvVars,
		})
	}

	return descriptors, nil
}

func (r *Resolver) loadInventory(path string) (*models.Inventory, error) {
	var inventory models.Inventory
	if err := r.loadDocument(path, inventorySchema, &inventory); err != nil {
		return nil, &DocumentError{Path: path, Err: fmt.Errorf("%w: %w", ErrInvalidInventory, err)}
	}

	if err := r.validate.Struct(&inventory); err != nil {
		return nil, &DocumentError{
			Path: path,
			Err:  fmt.Errorf("%w: 'stages' must be a list of non-empty ids", ErrInvalidInventory),
		}
	}

	return &inventory, nil
}

func (r *Resolver) loadWorkflow(path string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := r.loadDocument(path, workflowSchema, &workflow); err != nil {
		return nil, &DocumentError{Path: path, Err: fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)}
	}

	if err := r.validate.Struct(&workflow); err != nil {
		return nil, &DocumentError{
			Path: path,
			Err:  fmt.Errorf("%w: 'stages' must be a list of non-empty ids", ErrInvalidWorkflow),
		}
	}

	return &workflow, nil
}

func (r *Resolver) loadStageSpec(path string) (*models.StageSpec, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DocumentError{Path: path, Err: ErrMissingStageMetadata}
	}

	var spec models.StageSpec
	if err := r.loadDocument(path, stageSchema, &spec); err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}

	return &spec, nil
}

// loadDocument decodes a YAML document, checks its shape against the given
// schema, and then binds it strictly into out.
func (r *Resolver) loadDocument(path string, schema map[string]any, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	if err := validateSchema(schema, doc); err != nil {
		return err
	}

	return yaml.Unmarshal(raw, out)
}

func validateSchema(schema map[string]any, doc map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
