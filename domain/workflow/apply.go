package workflow

import (
	"loopflow/bizerror"
	"loopflow/common"
	"loopflow/domain"
	"loopflow/event"
	"loopflow/idgen"
	"loopflow/notify"
	"loopflow/persistence"
	"loopflow/session"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	instanceIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})
	taskIdWorker     = sonyflake.NewSonyflake(sonyflake.Settings{})

	ApplyWorkflowTemplateFunc = ApplyWorkflowTemplate
)

// ApplyWorkflowTemplate materializes a template onto a loop: one frozen
// instance plus one task per step, in the template's declared step order.
// Step dependencies are authoring-time metadata; all tasks are created
// immediately, not gated on dependency completion.
func ApplyWorkflowTemplate(c *TemplateApplication, s *session.Session) (*WorkflowApplyResult, error) {
	now := types.CurrentTimestamp()

	var result *WorkflowApplyResult
	var parties []domain.Party
	var loop domain.Loop
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		template := WorkflowTemplate{}
		if err := tx.Where(&WorkflowTemplate{ID: c.TemplateID}).First(&template).Error; err != nil {
			return err
		}

		if err := tx.Where(&domain.Loop{ID: c.LoopID}).First(&loop).Error; err != nil {
			return err
		}
		if loop.OrgID != template.OrgID {
			return domain.ErrNotFound
		}
		if !s.Perms.HasRoleSuffix("_" + loop.OrgID.String()) {
			return bizerror.ErrForbidden
		}

		if err := tx.Where(&domain.Party{LoopID: loop.ID}).Find(&parties).Error; err != nil {
			return err
		}

		instance := WorkflowInstance{
			ID:         idgen.NextID(instanceIdWorker),
			LoopID:     loop.ID,
			TemplateID: template.ID,
			OrgID:      template.OrgID,
			Name:       template.Name,
			Steps:      append(WorkflowSteps{}, template.Steps...),
			Status:     InstanceStatusActive,
			CreateTime: now,
		}
		if err := tx.Create(&instance).Error; err != nil {
			return err
		}

		tasks := make([]domain.Task, 0, len(instance.Steps))
		for _, step := range instance.Steps {
			task := domain.Task{
				ID:     idgen.NextID(taskIdWorker),
				LoopID: loop.ID,

				Title:    step.Title,
				Status:   domain.TaskStatusTodo,
				Priority: domain.TaskPriorityMedium,

				AssignedTo: resolveAssignee(parties, step.AutoAssignRole),

				WorkflowInstanceID: instance.ID,
				StepID:             step.ID,

				CreatorID:  s.Identity.ID,
				CreateTime: now,
			}
			if step.EstimatedDays > 0 {
				task.DueTime = types.Timestamp(time.Time(now).AddDate(0, 0, step.EstimatedDays))
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
			tasks = append(tasks, task)
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeWorkflowInstance, instance.ID, instance.Name, instance.OrgID,
			event.EventCategoryCreated, []event.UpdatedProperty{{
				PropertyName: "Tasks", PropertyDesc: "Tasks",
				NewValue: strconv.Itoa(len(tasks)), NewValueDesc: "created task count",
			}}, &s.Identity, now, tx)
		if err != nil {
			return err
		}

		result = &WorkflowApplyResult{Instance: instance, Tasks: tasks}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	dispatchAssignmentNotifications(result.Tasks, parties, &loop)

	return result, nil
}

func resolveAssignee(parties []domain.Party, role domain.PartyRole) types.ID {
	if role == "" {
		return 0
	}
	for _, p := range parties {
		if p.Role == role && p.Status == domain.PartyStatusActive {
			return p.ID
		}
	}
	return 0
}

func dispatchAssignmentNotifications(tasks []domain.Task, parties []domain.Party, loop *domain.Loop) {
	partyIndex := map[types.ID]domain.Party{}
	for _, p := range parties {
		partyIndex[p.ID] = p
	}

	for _, task := range tasks {
		if task.AssignedTo == 0 {
			continue
		}
		assignee, found := partyIndex[task.AssignedTo]
		if !found {
			continue
		}
		err := notify.NotifyTaskAssignedFunc(&notify.TaskAssignmentNotification{
			AssigneeName:  assignee.Name,
			AssigneeEmail: assignee.Email,
			TaskTitle:     task.Title,
			DueTime:       task.DueTime,
			LoopAddress:   loop.Address,
			TaskURL:       "/loops/" + loop.ID.String() + "/tasks/" + task.ID.String(),
		})
		if err != nil {
			common.Log.WithField("taskId", task.ID).Warn("task assignment notification failed: ", err)
		}
	}
}
