package workflow

import (
	"loopflow/bizerror"
	"loopflow/domain"
	"loopflow/event"
	"loopflow/idgen"
	"loopflow/persistence"
	"loopflow/session"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	templateIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateWorkflowTemplateFunc = CreateWorkflowTemplate
	DetailWorkflowTemplateFunc = DetailWorkflowTemplate
	QueryWorkflowTemplatesFunc = QueryWorkflowTemplates
	UpdateWorkflowTemplateFunc = UpdateWorkflowTemplate
	DeleteWorkflowTemplateFunc = DeleteWorkflowTemplate
)

// ValidateSteps checks the template invariants: step ids are unique
// within the template, every dependency references a declared sibling
// step id, and auto-assign roles are from the closed role set.
func ValidateSteps(steps []WorkflowStep) error {
	declared := map[string]bool{}
	for _, step := range steps {
		if declared[step.ID] {
			return &bizerror.ErrTemplateStepInvalid{StepID: step.ID, Reason: "duplicated step id"}
		}
		declared[step.ID] = true
	}
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if !declared[dep] {
				return &bizerror.ErrTemplateStepInvalid{StepID: step.ID,
					Reason: "dependency " + strconv.Quote(dep) + " is not a step of this template"}
			}
		}
		if step.AutoAssignRole != "" && !step.AutoAssignRole.IsValid() {
			return &bizerror.ErrTemplateStepInvalid{StepID: step.ID,
				Reason: "unknown auto-assign role " + strconv.Quote(string(step.AutoAssignRole))}
		}
	}
	return nil
}

func CreateWorkflowTemplate(c *TemplateCreation, s *session.Session) (*WorkflowTemplate, error) {
	if !s.Perms.HasRoleSuffix("_" + c.OrgID.String()) {
		return nil, bizerror.ErrForbidden
	}
	if err := ValidateSteps(c.Steps); err != nil {
		return nil, err
	}

	template := &WorkflowTemplate{
		ID:          idgen.NextID(templateIdWorker),
		Name:        c.Name,
		OrgID:       c.OrgID,
		Description: c.Description,
		Steps:       c.Steps,
		CreateTime:  types.CurrentTimestamp(),
	}

	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return err
		}
		var err error
		ev, err = event.CreateEvent(event.SourceTypeWorkflowTemplate, template.ID, template.Name, template.OrgID,
			event.EventCategoryCreated, nil, &s.Identity, template.CreateTime, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return template, nil
}

func DetailWorkflowTemplate(id types.ID, s *session.Session) (*WorkflowTemplate, error) {
	template := WorkflowTemplate{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(&WorkflowTemplate{ID: id}).First(&template).Error; err != nil {
		return nil, err
	}
	if !s.Perms.HasOrgViewPerm(template.OrgID) {
		return nil, bizerror.ErrForbidden
	}
	return &template, nil
}

func QueryWorkflowTemplates(query *TemplateQuery, s *session.Session) (*[]WorkflowTemplate, error) {
	var templates []WorkflowTemplate
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	q := db.Where(WorkflowTemplate{OrgID: query.OrgID})
	if query.Name != "" {
		q = q.Where("name like ?", "%"+query.Name+"%")
	}
	visibleOrgs := s.VisibleOrgs()
	if len(visibleOrgs) == 0 {
		return &[]WorkflowTemplate{}, nil
	}
	q = q.Where("org_id in (?)", visibleOrgs)
	if err := q.Find(&templates).Error; err != nil {
		return nil, err
	}

	return &templates, nil
}

// UpdateWorkflowTemplate re-validates the steps exactly as creation does.
// Updating an already applied template is allowed: instances hold frozen
// step copies and are not touched.
func UpdateWorkflowTemplate(id types.ID, u *TemplateUpdating, s *session.Session) (*WorkflowTemplate, error) {
	if err := ValidateSteps(u.Steps); err != nil {
		return nil, err
	}

	template := WorkflowTemplate{}
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&WorkflowTemplate{ID: id}).First(&template).Error; err != nil {
			return err
		}
		if !s.Perms.HasRoleSuffix(domain.OrgRoleManager + "_" + template.OrgID.String()) {
			return bizerror.ErrForbidden
		}
		if err := tx.Model(&WorkflowTemplate{}).Where(&WorkflowTemplate{ID: id}).
			Update(&WorkflowTemplate{Name: u.Name, Description: u.Description, Steps: u.Steps}).Error; err != nil {
			return err
		}
		// query again
		if err := tx.Where(&WorkflowTemplate{ID: id}).First(&template).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeWorkflowTemplate, template.ID, template.Name, template.OrgID,
			event.EventCategoryPropertyUpdated, []event.UpdatedProperty{{
				PropertyName: "Steps", PropertyDesc: "Steps",
				NewValue: strconv.Itoa(len(u.Steps)), NewValueDesc: "step count",
			}}, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return &template, nil
}

// DeleteWorkflowTemplate refuses when instances were materialized from
// this template (matched by name within the organization), reporting the
// dependent instance count. Template history behind applied instances is
// kept for audit.
func DeleteWorkflowTemplate(id types.ID, s *session.Session) error {
	var ev *event.EventRecord
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		template := WorkflowTemplate{}
		if err := tx.Where(&WorkflowTemplate{ID: id}).First(&template).Error; err != nil {
			return err
		}
		if !s.Perms.HasRoleSuffix(domain.OrgRoleManager + "_" + template.OrgID.String()) {
			return bizerror.ErrForbidden
		}

		var instanceCount int
		if err := tx.Model(&WorkflowInstance{}).
			Where(&WorkflowInstance{OrgID: template.OrgID, Name: template.Name}).
			Count(&instanceCount).Error; err != nil {
			return err
		}
		if instanceCount > 0 {
			return &bizerror.ErrTemplateInUse{InstanceCount: instanceCount}
		}

		if err := tx.Model(&WorkflowTemplate{}).Delete(&WorkflowTemplate{ID: id}).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeWorkflowTemplate, template.ID, template.Name, template.OrgID,
			event.EventCategoryDeleted, nil, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}
	return nil
}
