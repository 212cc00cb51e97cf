// Package talinolol implements a whole-body PBPK model for talinolol:
// gastrointestinal lumen, perfusion-limited organ compartments, venous and
// arterial blood, and urine/feces sinks. Oral doses dissolve from the
// stomach into the intestine and absorb into gut tissue; IV doses enter
// venous blood. Hepatic clearance switches between Michaelis-Menten and
// linear kinetics on the Km_tal parameter, and renal clearance scales with
// body surface area.
//
// All compartments including the sinks are state entries, so total substance
// mass is conserved between dosing events.
package talinolol

import (
	"math"

	"github.com/san-kum/pbpksim/internal/model"
	"github.com/san-kum/pbpksim/internal/solve"
)

const (
	iStomach = iota
	iIntestine
	iGut
	iLiver
	iKidney
	iLung
	iRest
	iVenous
	iArterial
	iUrine
	iFeces
	dim
)

type Model struct{}

func New() *Model { return &Model{} }

func (m *Model) Name() string { return "talinolol" }

func (m *Model) Species() []model.Species {
	return []model.Species{
		{ID: "Astomach", InitialAmount: 0, Unit: "µmol"},
		{ID: "Aintestine", InitialAmount: 0, Unit: "µmol"},
		{ID: "Agu", InitialAmount: 0, Unit: "µmol"},
		{ID: "Ali", InitialAmount: 0, Unit: "µmol"},
		{ID: "Aki", InitialAmount: 0, Unit: "µmol"},
		{ID: "Alu", InitialAmount: 0, Unit: "µmol"},
		{ID: "Are", InitialAmount: 0, Unit: "µmol"},
		{ID: "Ave", InitialAmount: 0, Unit: "µmol"},
		{ID: "Aar", InitialAmount: 0, Unit: "µmol"},
		{ID: "Aurine", InitialAmount: 0, Unit: "µmol"},
		{ID: "Afeces", InitialAmount: 0, Unit: "µmol"},
	}
}

func (m *Model) Parameters() []model.Parameter {
	return []model.Parameter{
		{ID: "BW", Required: true},
		{ID: "HEIGHT", Required: true},
		{ID: "HR", Default: 70},
		{ID: "HRrest", Default: 70},
		{ID: "COBW", Default: 75},   // cardiac output per body weight [ml/min/kg]
		{ID: "COHRI", Default: 150}, // cardiac output increment per heart beat [ml/min]

		// organ volume fractions of body weight
		{ID: "FVgu", Default: 0.0171},
		{ID: "FVki", Default: 0.0044},
		{ID: "FVli", Default: 0.021},
		{ID: "FVlu", Default: 0.0076},
		{ID: "FVve", Default: 0.0514},
		{ID: "FVar", Default: 0.0257},

		// blood flow fractions of cardiac output
		{ID: "FQgu", Default: 0.18},
		{ID: "FQki", Default: 0.19},
		{ID: "FQh", Default: 0.215},

		// substance
		{ID: "Mr_tal", Default: 363.93}, // molar mass [g/mol]
		{ID: "fup_tal", Default: 0.45},  // fraction unbound in plasma
		{ID: "Kp_tal", Default: 1.0},    // tissue-plasma partition coefficient

		// gastrointestinal kinetics [1/hr]
		{ID: "Ka_dis_tal", Default: 2.0},
		{ID: "Ka_tal", Default: 1.0},
		{ID: "Kfe_tal", Default: 0.1},

		// clearances; Km_tal > 0 selects Michaelis-Menten hepatic kinetics
		{ID: "CLhep_tal", Default: 1.0},  // [l/hr]
		{ID: "Vmax_tal", Default: 0},     // [µmol/hr]
		{ID: "Km_tal", Default: 0},       // [µmol/l]
		{ID: "CLren_tal", Default: 1.5},  // [l/hr], scaled by BSA/1.73

		// dosing; doses scheduled at t <= 0 are applied at initialization
		{ID: "PODOSE_tal", Default: 0}, // [mg]
		{ID: "IVDOSE_tal", Default: 0}, // [mg]
		{ID: "Tpo_tal", Default: 0},    // [hr]
		{ID: "Tiv_tal", Default: 0},    // [hr]
	}
}

func (m *Model) FinalTime() float64 { return 24.0 }

func (m *Model) Compile(p model.Params) (solve.System, solve.State, error) {
	v, err := model.Resolve(m.Parameters(), p)
	if err != nil {
		return nil, nil, err
	}
	y0, err := model.InitialState(m.Species(), p.Init)
	if err != nil {
		return nil, nil, err
	}

	bw, height := v["BW"], v["HEIGHT"]

	// Cardiac output [l/hr] from body weight and heart rate elevation.
	co := (bw*v["COBW"] + (v["HR"]-v["HRrest"])*v["COHRI"]) * 60 / 1000
	if co < 0 {
		co = 0
	}

	// Haycock body surface area [m²]; degenerate anthropometry gives zero
	// and disables BSA-scaled clearance rather than propagating NaN.
	bsa := 0.0
	if bw > 0 && height > 0 {
		bsa = 0.024265 * math.Pow(bw, 0.5378) * math.Pow(height, 0.3964)
	}

	kp := v["Kp_tal"]
	vgu := bw * v["FVgu"]
	vki := bw * v["FVki"]
	vli := bw * v["FVli"]
	vlu := bw * v["FVlu"]
	vve := bw * v["FVve"]
	var_ := bw * v["FVar"]
	fvre := 1 - (v["FVgu"] + v["FVki"] + v["FVli"] + v["FVlu"] + v["FVve"] + v["FVar"])
	if fvre < 0 {
		fvre = 0
	}
	vre := bw * fvre

	qgu := co * v["FQgu"]
	qki := co * v["FQki"]
	qh := co * v["FQh"]
	qha := qh - qgu
	if qha < 0 {
		qha = 0
	}
	fqre := 1 - (v["FQki"] + v["FQh"])
	if fqre < 0 {
		fqre = 0
	}

	s := &system{
		qgu: qgu,
		qki: qki,
		qh:  qha + qgu,
		qha: qha,
		qre: co * fqre,
		qlu: co,
		qc:  co,

		gve: model.SafeDiv(1, vve),
		gar: model.SafeDiv(1, var_),
		ggu: model.SafeDiv(1, vgu*kp),
		gli: model.SafeDiv(1, vli*kp),
		gki: model.SafeDiv(1, vki*kp),
		glu: model.SafeDiv(1, vlu*kp),
		gre: model.SafeDiv(1, vre*kp),

		kadis: v["Ka_dis_tal"],
		ka:    v["Ka_tal"],
		kfe:   v["Kfe_tal"],

		fup:   v["fup_tal"],
		clren: v["CLren_tal"] * v["fup_tal"] * bsa / 1.73,
		clhep: v["CLhep_tal"],
		vmax:  v["Vmax_tal"],
		km:    v["Km_tal"],
		mm:    v["Km_tal"] > 0,

		poDose: model.SafeDiv(v["PODOSE_tal"]*1000, v["Mr_tal"]),
		ivDose: model.SafeDiv(v["IVDOSE_tal"]*1000, v["Mr_tal"]),
		tpo:    v["Tpo_tal"],
		tiv:    v["Tiv_tal"],
	}

	if s.poDose > 0 && s.tpo <= 0 {
		y0[iStomach] += s.poDose
		s.poDose = 0
	}
	if s.ivDose > 0 && s.tiv <= 0 {
		y0[iVenous] += s.ivDose
		s.ivDose = 0
	}
	return s, y0, nil
}

type system struct {
	// perfusion [l/hr]
	qgu, qki, qh, qha, qre, qlu, qc float64

	// inverse distribution volumes [1/l]; tissue entries fold in Kp so that
	// A_x * g_x is the venous outflow concentration. Zero when the parameter
	// combination degenerates the volume.
	gve, gar, ggu, gli, gki, glu, gre float64

	kadis, ka, kfe float64

	fup, clren          float64
	clhep, vmax, km     float64
	mm                  bool
	poDose, ivDose      float64
	tpo, tiv            float64
}

func (s *system) Dim() int { return dim }

// hepatic returns the hepatic elimination rate and its derivative with
// respect to the liver outflow concentration. The branch is selected once
// per evaluation and shared between Derive and JacVec.
func (s *system) hepatic(cli float64) (rate, slope float64) {
	cf := s.fup * cli
	if s.mm {
		den := s.km + cf
		rate = model.SafeDiv(s.vmax*cf, den)
		slope = model.SafeDiv(s.vmax*s.km, den*den) * s.fup
		return rate, slope
	}
	return s.clhep * cf, s.clhep * s.fup
}

func (s *system) Derive(y solve.State, t float64) solve.State {
	cve := s.gve * y[iVenous]
	car := s.gar * y[iArterial]
	cgu := s.ggu * y[iGut]
	cli := s.gli * y[iLiver]
	cki := s.gki * y[iKidney]
	clu := s.glu * y[iLung]
	cre := s.gre * y[iRest]

	vhep, _ := s.hepatic(cli)
	vren := s.clren * cki

	dy := make(solve.State, dim)
	dy[iStomach] = -s.kadis * y[iStomach]
	dy[iIntestine] = s.kadis*y[iStomach] - (s.ka+s.kfe)*y[iIntestine]
	dy[iGut] = s.ka*y[iIntestine] + s.qgu*(car-cgu)
	dy[iLiver] = s.qha*car + s.qgu*cgu - s.qh*cli - vhep
	dy[iKidney] = s.qki*(car-cki) - vren
	dy[iLung] = s.qlu * (cve - clu)
	dy[iRest] = s.qre * (car - cre)
	dy[iVenous] = s.qki*cki + s.qh*cli + s.qre*cre - s.qlu*cve
	dy[iArterial] = s.qlu*clu - s.qc*car
	dy[iUrine] = vren
	dy[iFeces] = s.kfe*y[iIntestine] + vhep
	return dy
}

func (s *system) JacVec(y solve.State, t float64, v solve.State) solve.State {
	_, dhep := s.hepatic(s.gli * y[iLiver])

	cve := s.gve * v[iVenous]
	car := s.gar * v[iArterial]
	cgu := s.ggu * v[iGut]
	cli := s.gli * v[iLiver]
	cki := s.gki * v[iKidney]
	clu := s.glu * v[iLung]
	cre := s.gre * v[iRest]

	jv := make(solve.State, dim)
	jv[iStomach] = -s.kadis * v[iStomach]
	jv[iIntestine] = s.kadis*v[iStomach] - (s.ka+s.kfe)*v[iIntestine]
	jv[iGut] = s.ka*v[iIntestine] + s.qgu*(car-cgu)
	jv[iLiver] = s.qha*car + s.qgu*cgu - s.qh*cli - dhep*cli
	jv[iKidney] = s.qki*(car-cki) - s.clren*cki
	jv[iLung] = s.qlu * (cve - clu)
	jv[iRest] = s.qre * (car - cre)
	jv[iVenous] = s.qki*cki + s.qh*cli + s.qre*cre - s.qlu*cve
	jv[iArterial] = s.qlu*clu - s.qc*car
	jv[iUrine] = s.clren * cki
	jv[iFeces] = s.kfe*v[iIntestine] + dhep*cli
	return jv
}

func (s *system) NumEvents() int { return 2 }

func (s *system) EventValues(y solve.State, t float64) []float64 {
	g := []float64{-1, -1}
	if s.poDose > 0 {
		g[0] = t - s.tpo
	}
	if s.ivDose > 0 {
		g[1] = t - s.tiv
	}
	return g
}

func (s *system) ApplyEvent(i int, y solve.State, t float64) solve.State {
	out := y.Clone()
	switch i {
	case 0:
		out[iStomach] += s.poDose
	case 1:
		out[iVenous] += s.ivDose
	}
	return out
}
