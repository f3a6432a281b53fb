package repository

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableUploads     = "uploads"
	tableCourses     = "courses"
	tableSessions    = "sessions"
	tableExamDates   = "exam_dates"
	tableInstructors = "instructors"
)

var longText = map[string]string{dialect.Postgres: "text"}

func idColumn() *schema.Column {
	return &schema.Column{Name: "id", Type: field.TypeString, Size: 36}
}

func strColumn(name string, size int64) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: size, Default: ""}
}

// Tables describes the relational schema. Every natural key carries a unique index so
// concurrent get-or-create calls converge on one row.
func Tables() []*schema.Table {
	uploadsColumns := []*schema.Column{
		idColumn(),
		{Name: "owner_id", Type: field.TypeString, Size: 36},
		{Name: "source_path", Type: field.TypeString, SchemaType: longText},
		strColumn("filename", 255),
		strColumn("file_ext", 16),
		{Name: "file_size", Type: field.TypeInt64, Default: 0},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "uploaded_at", Type: field.TypeString, Size: 40},
		{Name: "updated_at", Type: field.TypeString, Size: 40},
		strColumn("status", 16),
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: longText},
		{Name: "extracted_text", Type: field.TypeString, Nullable: true, SchemaType: longText},
		{Name: "extracted_data", Type: field.TypeJSON, Nullable: true},
	}
	uploads := &schema.Table{
		Name:       tableUploads,
		Columns:    uploadsColumns,
		PrimaryKey: []*schema.Column{uploadsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "uploads_owner_hash", Unique: true, Columns: []*schema.Column{uploadsColumns[1], uploadsColumns[6]}},
		},
	}

	coursesColumns := []*schema.Column{
		idColumn(),
		{Name: "owner_id", Type: field.TypeString, Size: 36},
		strColumn("name", 255),
		strColumn("degree", 255),
		strColumn("department", 255),
		strColumn("university", 255),
		{Name: "pass_conditions", Type: field.TypeString, Default: "", SchemaType: longText},
	}
	courses := &schema.Table{
		Name:       tableCourses,
		Columns:    coursesColumns,
		PrimaryKey: []*schema.Column{coursesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "courses_owner_name", Unique: true, Columns: []*schema.Column{coursesColumns[1], coursesColumns[2]}},
		},
	}

	sessionsColumns := []*schema.Column{
		idColumn(),
		{Name: "course_id", Type: field.TypeString, Size: 36},
		strColumn("group_name", 100),
		strColumn("type", 20),
		strColumn("time_slot", 100),
		strColumn("room", 100),
		strColumn("day", 50),
	}
	sessions := &schema.Table{
		Name:       tableSessions,
		Columns:    sessionsColumns,
		PrimaryKey: []*schema.Column{sessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{{
			Symbol:     "sessions_course",
			Columns:    []*schema.Column{sessionsColumns[1]},
			RefColumns: []*schema.Column{coursesColumns[0]},
			RefTable:   courses,
			OnDelete:   schema.Cascade,
		}},
		Indexes: []*schema.Index{
			{Name: "sessions_natural_key", Unique: true, Columns: sessionsColumns[1:]},
		},
	}

	datesColumns := []*schema.Column{
		idColumn(),
		{Name: "course_id", Type: field.TypeString, Size: 36},
		strColumn("title", 255),
		strColumn("date", 64),
	}
	dates := &schema.Table{
		Name:       tableExamDates,
		Columns:    datesColumns,
		PrimaryKey: []*schema.Column{datesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{{
			Symbol:     "exam_dates_course",
			Columns:    []*schema.Column{datesColumns[1]},
			RefColumns: []*schema.Column{coursesColumns[0]},
			RefTable:   courses,
			OnDelete:   schema.Cascade,
		}},
		Indexes: []*schema.Index{
			{Name: "exam_dates_natural_key", Unique: true, Columns: datesColumns[1:]},
			{Name: "exam_dates_date", Columns: []*schema.Column{datesColumns[3]}},
		},
	}

	instructorsColumns := []*schema.Column{
		idColumn(),
		{Name: "course_id", Type: field.TypeString, Size: 36},
		strColumn("name", 255),
		strColumn("office", 255),
		{Name: "link", Type: field.TypeString, Default: "", SchemaType: longText},
		{Name: "session_id", Type: field.TypeString, Size: 36, Nullable: true},
	}
	instructors := &schema.Table{
		Name:       tableInstructors,
		Columns:    instructorsColumns,
		PrimaryKey: []*schema.Column{instructorsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "instructors_course",
				Columns:    []*schema.Column{instructorsColumns[1]},
				RefColumns: []*schema.Column{coursesColumns[0]},
				RefTable:   courses,
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "instructors_session",
				Columns:    []*schema.Column{instructorsColumns[5]},
				RefColumns: []*schema.Column{sessionsColumns[0]},
				RefTable:   sessions,
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{Name: "instructors_course_name", Unique: true, Columns: []*schema.Column{instructorsColumns[1], instructorsColumns[2]}},
		},
	}

	return []*schema.Table{uploads, courses, sessions, dates, instructors}
}
