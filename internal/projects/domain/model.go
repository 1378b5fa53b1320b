package domain

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "inprogress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Project is stored at users/{uid}/projects/{id}. Tasks are a subcollection and
// are only populated on reads that ask for them.
type Project struct {
	ID           string        `json:"id" firestore:"id"`
	OwnerID      string        `json:"ownerId" firestore:"ownerId"`
	Name         string        `json:"name" firestore:"name"`
	Description  string        `json:"description" firestore:"description"`
	Status       ProjectStatus `json:"status" firestore:"status"`
	ClientID     string        `json:"clientId,omitempty" firestore:"clientId"`
	CreatedAt    time.Time     `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt" firestore:"updatedAt"`
	LastActivity time.Time     `json:"lastActivity" firestore:"lastActivity"`

	Tasks []Task `json:"tasks,omitempty" firestore:"-"`
}

// Task is stored at users/{uid}/projects/{pid}/tasks/{id}.
type Task struct {
	ID          string     `json:"id" firestore:"id"`
	ProjectID   string     `json:"projectId" firestore:"projectId"`
	Name        string     `json:"name" firestore:"name"`
	Description string     `json:"description" firestore:"description"`
	Status      TaskStatus `json:"status" firestore:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty" firestore:"dueDate,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty" firestore:"approvedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// TimeEntry is stored at users/{uid}/projects/{pid}/timeEntries/{id}.
// EndTime is nil while the timer runs. ProjectName and TaskName are snapshots
// taken when the entry was written.
type TimeEntry struct {
	ID          string     `json:"id" firestore:"id"`
	OwnerID     string     `json:"ownerId" firestore:"ownerId"`
	ProjectID   string     `json:"projectId" firestore:"projectId"`
	TaskID      string     `json:"taskId,omitempty" firestore:"taskId"`
	Description string     `json:"description" firestore:"description"`
	StartTime   time.Time  `json:"startTime" firestore:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty" firestore:"endTime"`
	Duration    int64      `json:"duration" firestore:"duration"` // seconds
	ProjectName string     `json:"projectName" firestore:"projectName"`
	TaskName    string     `json:"taskName,omitempty" firestore:"taskName"`
	CreatedAt   time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

func (e *TimeEntry) Running() bool { return e.EndTime == nil }

type CreateProjectRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	ClientID    string        `json:"clientId"`
}

type UpdateProjectRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Status      *ProjectStatus `json:"status"`
	ClientID    *string        `json:"clientId"`
}

type CreateTaskRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
}

type UpdateTaskRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Status      *TaskStatus `json:"status"`
	DueDate     *time.Time  `json:"dueDate"`
}

type StartTimerRequest struct {
	ProjectID   string `json:"projectId"`
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
}

type CreateTimeEntryRequest struct {
	ProjectID   string    `json:"projectId"`
	TaskID      string    `json:"taskId"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
}

type UpdateTimeEntryRequest struct {
	TaskID      *string    `json:"taskId"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}
