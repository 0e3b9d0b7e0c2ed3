package pkg

// Clone returns a deep copy of the patient so callers can read or mutate it
// without touching the stored record.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Age = cloneInt(p.Age)
	cp.PainLevel = cloneInt(p.PainLevel)
	cp.InjuryLocation = cloneString(p.InjuryLocation)
	cp.MobilityStatus = cloneString(p.MobilityStatus)
	cp.MedicalHistory = cloneString(p.MedicalHistory)
	cp.ActivityLevel = cloneString(p.ActivityLevel)
	cp.Goals = cloneString(p.Goals)

	cp.Injuries = make([]Injury, len(p.Injuries))
	for i, inj := range p.Injuries {
		cp.Injuries[i] = inj.Clone()
	}
	cp.WeeklySchedule = p.WeeklySchedule.Clone()
	if p.Recommendations != nil {
		cp.Recommendations = make([]Exercise, len(p.Recommendations))
		for i, ex := range p.Recommendations {
			cp.Recommendations[i] = cloneExercise(ex)
		}
	}
	return &cp
}

// Clone returns a copy of the injury.  SpecializedData is copied one level
// deep; nested values are shared.
func (i Injury) Clone() Injury {
	cp := i
	cp.DateOfOnset = cloneString(i.DateOfOnset)
	cp.AggravatingFactors = cloneString(i.AggravatingFactors)
	cp.EasingFactors = cloneString(i.EasingFactors)
	cp.MechanismOfInjury = cloneString(i.MechanismOfInjury)
	cp.SeverityBest = cloneInt(i.SeverityBest)
	cp.SeverityWorst = cloneInt(i.SeverityWorst)
	cp.SeverityDailyAvg = cloneInt(i.SeverityDailyAvg)
	cp.IrritabilityFactors = cloneString(i.IrritabilityFactors)
	cp.NatureOfPain = cloneString(i.NatureOfPain)
	cp.Stage = cloneString(i.Stage)
	cp.Stability = cloneString(i.Stability)
	if i.SpecializedData != nil {
		cp.SpecializedData = make(map[string]any, len(i.SpecializedData))
		for k, v := range i.SpecializedData {
			cp.SpecializedData[k] = v
		}
	}
	return cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
