package dummydb

import (
	"sync"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/billing"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

type (
	DB struct {
		user    *userTable
		student *studentTable
		crm     *crmTables
		billing *billingTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		students    map[string]*student.Student
		enrollments map[string]*student.Enrollment
	}

	crmTables struct {
		sync.RWMutex
		leads     map[string]*crm.Lead
		pipelines map[string]*crm.Pipeline
		columns   map[string]*crm.Column
	}

	billingTables struct {
		sync.RWMutex
		events       map[string]*billing.WebhookEvent
		balances     map[string]*billing.CreditBalance
		transactions map[string]*billing.CreditTransaction
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		student: &studentTable{
			students:    make(map[string]*student.Student),
			enrollments: make(map[string]*student.Enrollment),
		},
		crm: &crmTables{
			leads:     make(map[string]*crm.Lead),
			pipelines: make(map[string]*crm.Pipeline),
			columns:   make(map[string]*crm.Column),
		},
		billing: &billingTables{
			events:       make(map[string]*billing.WebhookEvent),
			balances:     make(map[string]*billing.CreditBalance),
			transactions: make(map[string]*billing.CreditTransaction),
		},
	}
	return db, nil
}
