package service

import (
	"sort"
	"strings"

	"github.com/swifttiger/backend/internal/models"
	"github.com/swifttiger/backend/internal/utils"
)

type TechnicianLoad struct {
	Tech models.User
	Load int
}

type EligibilityResult struct {
	Eligible   []TechnicianLoad
	ReasonCode string
	ReasonText string
	Stages     []EligibilityStage
	NeedsSkill bool
	Skill      string
}

type EligibilityStage struct {
	Name       string
	Candidates []TechnicianLoad
}

// FilterEligibleTechnicians runs the staged assignment rules for one
// job: active technicians, then skill match for high priority work,
// then the per-technician workload cap.
func FilterEligibleTechnicians(techs []TechnicianLoad, job models.Job, maxJobs int) EligibilityResult {
	skill, needsSkill := requiredSkill(job)

	result := EligibilityResult{
		NeedsSkill: needsSkill,
		Skill:      skill,
	}

	result.Stages = append(result.Stages, EligibilityStage{
		Name:       "active_technicians",
		Candidates: techs,
	})

	if len(techs) == 0 {
		result.ReasonCode = "NO_ACTIVE_TECHNICIANS"
		result.ReasonText = "No active technicians available"
		return result
	}

	afterSkill := techs
	if needsSkill {
		afterSkill = filterTechnicians(afterSkill, func(t TechnicianLoad) bool {
			return hasSkill(t.Tech.Skills, skill)
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{
		Name:       "skill_rule",
		Candidates: afterSkill,
	})
	if needsSkill && len(afterSkill) == 0 {
		result.ReasonCode = "SKILL_REQUIRED_NO_MATCH"
		result.ReasonText = "High priority job requires skill " + skill
		return result
	}

	afterLoad := afterSkill
	if maxJobs > 0 {
		afterLoad = filterTechnicians(afterLoad, func(t TechnicianLoad) bool {
			return t.Load < maxJobs
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{
		Name:       "workload_rule",
		Candidates: afterLoad,
	})
	if len(afterLoad) == 0 {
		result.ReasonCode = "WORKLOAD_EXCEEDED"
		result.ReasonText = "All matching technicians are at their job cap"
		return result
	}

	result.Eligible = afterLoad
	return result
}

// PickTechnician chooses between the two least loaded candidates with
// a stable hash of the job key, so reruns over the same data assign
// the same technician.
func PickTechnician(jobKey string, eligible []TechnicianLoad) (TechnicianLoad, []TechnicianLoad) {
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Load == eligible[j].Load {
			return eligible[i].Tech.ID < eligible[j].Tech.ID
		}
		return eligible[i].Load < eligible[j].Load
	})

	if len(eligible) <= 2 {
		idx := int(utils.HashStringToUint64(jobKey) % uint64(len(eligible)))
		return eligible[idx], eligible
	}

	top2 := eligible[:2]
	idx := int(utils.HashStringToUint64(jobKey) % 2)
	return top2[idx], top2
}

// requiredSkill reports the skill a technician must carry for a job.
// Only high priority work is skill gated.
func requiredSkill(job models.Job) (string, bool) {
	if job.Priority == models.JobPriorityHigh {
		return job.ServiceType, true
	}
	return "", false
}

func hasSkill(skills []string, target string) bool {
	for _, s := range skills {
		if strings.EqualFold(strings.TrimSpace(s), target) {
			return true
		}
	}
	return false
}

func filterTechnicians(techs []TechnicianLoad, keep func(TechnicianLoad) bool) []TechnicianLoad {
	out := make([]TechnicianLoad, 0, len(techs))
	for _, t := range techs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
