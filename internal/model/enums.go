package model

// GameMode is the top-level game mode a recording session belongs to.
type GameMode string

const (
	GameModeBattle GameMode = "battle"
	GameModeSalmon GameMode = "salmon"
)

// Valid reports whether m is one of the known game modes.
func (m GameMode) Valid() bool {
	switch m {
	case GameModeBattle, GameModeSalmon:
		return true
	}
	return false
}

// Match is the game-mode category of a battle: regular, anarchy variants, X,
// challenge, splatfest and tricolor. Distinct from the verb "match" used for
// image comparison throughout C1.
type Match string

const (
	MatchRegular        Match = "レギュラーマッチ"
	MatchAnarchyOpen    Match = "バンカラマッチ(オープン)"
	MatchAnarchySeries  Match = "バンカラマッチ(チャレンジ)"
	MatchX              Match = "Xマッチ"
	MatchChallenge      Match = "イベントマッチ"
	MatchFestRegular    Match = "フェスマッチ(オープン)"
	MatchFestChallenge  Match = "フェスマッチ(チャレンジ)"
	MatchFestTriColor   Match = "フェスマッチ(トリカラ)"
	MatchUnknown        Match = ""
)

// IsAnarchy reports whether m is one of the anarchy-series variants.
func (m Match) IsAnarchy() bool {
	return m == MatchAnarchyOpen || m == MatchAnarchySeries
}

// IsFest reports whether m is one of the splatfest variants.
func (m Match) IsFest() bool {
	switch m {
	case MatchFestRegular, MatchFestChallenge, MatchFestTriColor:
		return true
	}
	return false
}

// IsTriColor reports whether m is the tricolor splatfest battle.
func (m Match) IsTriColor() bool {
	return m == MatchFestTriColor
}

// EqualRelaxed compares two Match values treating open/challenge variants of
// the same family (anarchy, fest) as equal, per spec.md §3.
func (m Match) EqualRelaxed(other Match) bool {
	if m == other {
		return true
	}
	if m.IsAnarchy() && other.IsAnarchy() {
		return true
	}
	if m.IsFest() && other.IsFest() {
		return true
	}
	return false
}

// Rule is the objective mode of a battle.
type Rule string

const (
	RuleTurfWar         Rule = "ナワバリバトル"
	RuleSplatZones      Rule = "ガチエリア"
	RuleTowerControl    Rule = "ガチヤグラ"
	RuleRainmaker       Rule = "ガチホコ"
	RuleClamBlitz       Rule = "ガチアサリ"
	RuleTriColorTurfWar Rule = "トリカラバトル"
)

// Stage is the map a battle is played on.
type Stage string

const (
	StageScorchGorge         Stage = "ユノハナ大渓谷"
	StageEeltailAlley        Stage = "ゴンズイ地区"
	StageHagglefish          Stage = "ヤガラ市場"
	StageUndertowSpillway    Stage = "マテガイ放水路"
	StageMincemeatMetalworks Stage = "ナメロウ金属"
	StageUmamiRuins          Stage = "ナンプラー遺跡"
	StageBrinewaterSprings   Stage = "クサヤ温泉"
	StageShipshapeCargoCo    Stage = "オヒョウ海運"
)

// Judgement is the final win/lose outcome of a session.
type Judgement string

const (
	JudgementWin  Judgement = "WIN"
	JudgementLose Judgement = "LOSE"
)

// UdemaeRank is an anarchy-battle ordinal skill rank.
type UdemaeRank string

const (
	UdemaeCMinus UdemaeRank = "C-"
	UdemaeC      UdemaeRank = "C"
	UdemaeCPlus  UdemaeRank = "C+"
	UdemaeBMinus UdemaeRank = "B-"
	UdemaeB      UdemaeRank = "B"
	UdemaeBPlus  UdemaeRank = "B+"
	UdemaeAMinus UdemaeRank = "A-"
	UdemaeA      UdemaeRank = "A"
	UdemaeAPlus  UdemaeRank = "A+"
	UdemaeS      UdemaeRank = "S"
	UdemaeSPlus  UdemaeRank = "S+"
)

// udemaeOrder gives the total order of ranks, lowest first.
var udemaeOrder = []UdemaeRank{
	UdemaeCMinus, UdemaeC, UdemaeCPlus,
	UdemaeBMinus, UdemaeB, UdemaeBPlus,
	UdemaeAMinus, UdemaeA, UdemaeAPlus,
	UdemaeS, UdemaeSPlus,
}

func (r UdemaeRank) rank() int {
	for i, v := range udemaeOrder {
		if v == r {
			return i
		}
	}
	return -1
}

// Less reports whether r is a lower rank than other. An unknown rank sorts
// below every known rank, and two unknown ranks are not less than each
// other.
func (r UdemaeRank) Less(other UdemaeRank) bool {
	return r.rank() < other.rank()
}
