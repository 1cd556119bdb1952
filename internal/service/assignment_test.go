package service

import (
	"testing"

	"github.com/swifttiger/backend/internal/models"
)

func techLoad(id int64, load int, skills ...string) TechnicianLoad {
	return TechnicianLoad{
		Tech: models.User{ID: id, Role: models.RoleTechnician, Skills: skills, IsActive: true},
		Load: load,
	}
}

func TestFilterEligibleTechniciansSkillGate(t *testing.T) {
	techs := []TechnicianLoad{
		techLoad(1, 0, "Replacement", "Training"),
		techLoad(2, 0, "Maintenance"),
		techLoad(3, 0),
	}
	job := models.Job{ID: 10, ServiceType: models.ServiceTypeTraining, Priority: models.JobPriorityHigh}

	res := FilterEligibleTechnicians(techs, job, 8)
	if len(res.Eligible) != 1 || res.Eligible[0].Tech.ID != 1 {
		t.Fatalf("expected only technician 1 eligible, got %+v", res.Eligible)
	}
	if !res.NeedsSkill || res.Skill != models.ServiceTypeTraining {
		t.Fatalf("expected skill gate for high priority job, got %+v", res)
	}
}

func TestFilterEligibleTechniciansNoSkillGateForMediumPriority(t *testing.T) {
	techs := []TechnicianLoad{
		techLoad(1, 0, "Maintenance"),
		techLoad(2, 0),
	}
	job := models.Job{ID: 11, ServiceType: models.ServiceTypeTraining, Priority: models.JobPriorityMedium}

	res := FilterEligibleTechnicians(techs, job, 8)
	if len(res.Eligible) != 2 {
		t.Fatalf("expected both technicians eligible, got %+v", res.Eligible)
	}
}

func TestFilterEligibleTechniciansWorkloadCap(t *testing.T) {
	techs := []TechnicianLoad{
		techLoad(1, 8),
		techLoad(2, 8),
	}
	job := models.Job{ID: 12, ServiceType: models.ServiceTypeMaintenance, Priority: models.JobPriorityLow}

	res := FilterEligibleTechnicians(techs, job, 8)
	if len(res.Eligible) != 0 {
		t.Fatalf("expected nobody eligible at the cap, got %+v", res.Eligible)
	}
	if res.ReasonCode != "WORKLOAD_EXCEEDED" {
		t.Fatalf("expected WORKLOAD_EXCEEDED, got %s", res.ReasonCode)
	}
}

func TestFilterEligibleTechniciansEmpty(t *testing.T) {
	res := FilterEligibleTechnicians(nil, models.Job{ID: 13}, 8)
	if res.ReasonCode != "NO_ACTIVE_TECHNICIANS" {
		t.Fatalf("expected NO_ACTIVE_TECHNICIANS, got %s", res.ReasonCode)
	}
}

func TestFilterEligibleTechniciansSkillMismatchReason(t *testing.T) {
	techs := []TechnicianLoad{techLoad(1, 0, "Maintenance")}
	job := models.Job{ID: 14, ServiceType: models.ServiceTypeReplacement, Priority: models.JobPriorityHigh}

	res := FilterEligibleTechnicians(techs, job, 8)
	if res.ReasonCode != "SKILL_REQUIRED_NO_MATCH" {
		t.Fatalf("expected SKILL_REQUIRED_NO_MATCH, got %s", res.ReasonCode)
	}
	if len(res.Stages) != 2 {
		t.Fatalf("expected filtering to stop after the skill stage, got %d stages", len(res.Stages))
	}
}

func TestPickTechnicianDeterministic(t *testing.T) {
	eligible := []TechnicianLoad{
		techLoad(1, 5),
		techLoad(2, 1),
		techLoad(3, 1),
	}
	picked1, top2 := PickTechnician("job-1", eligible)
	picked2, _ := PickTechnician("job-1", eligible)
	if picked1.Tech.ID != picked2.Tech.ID {
		t.Fatalf("expected deterministic assignment")
	}
	if len(top2) != 2 {
		t.Fatalf("expected top2 length 2")
	}
}

func TestPickTechnicianPrefersSmallerLoad(t *testing.T) {
	eligible := []TechnicianLoad{
		techLoad(1, 5),
		techLoad(2, 1),
		techLoad(3, 3),
	}
	picked, top2 := PickTechnician("job-99", eligible)
	for _, c := range top2 {
		if c.Tech.ID == 1 {
			t.Fatalf("most loaded technician must not reach the top 2")
		}
	}
	if picked.Load > 3 {
		t.Fatalf("expected a lightly loaded technician, got load %d", picked.Load)
	}
}
