package models

import "time"

type FunnelCounts struct {
	TotalLeads      int `json:"totalLeads"`
	ConnectedLeads  int `json:"connectedLeads"`
	InterestedLeads int `json:"interestedLeads"`
	ClientConverted int `json:"clientConverted"`
}

type ConversionRates struct {
	FirstPhase  float64 `json:"firstPhase"`
	SecondPhase float64 `json:"secondPhase"`
	ThirdPhase  float64 `json:"thirdPhase"`
}

type Window struct {
	Name  string    `json:"name"` // today, week, month
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type FunnelReport struct {
	FunnelCounts
	ConversionRates
	Window Window `json:"window"`
}

type DashboardData struct {
	Yesterday FunnelReport `json:"yesterday"`
	Week      FunnelReport `json:"week"`
	Month     FunnelReport `json:"month"`
}

// FunnelUpdate es el resultado de normalizar los 14 valores.
type FunnelUpdate struct {
	Data                   DashboardData
	OverallConversionRatio float64
	RemainingTarget        float64
}

type FunnelState string

const (
	FunnelUninitialized FunnelState = "UNINITIALIZED"
	FunnelLoading       FunnelState = "LOADING"
	FunnelReady         FunnelState = "READY"
	FunnelError         FunnelState = "ERROR"
)

type FunnelSnapshot struct {
	State                  FunnelState    `json:"state"`
	Loading                bool           `json:"loading"`
	Error                  *string        `json:"error"`
	Data                   *DashboardData `json:"data"`
	OverallConversionRatio float64        `json:"overallConversionRatio"`
	RemainingTarget        float64        `json:"remainingTarget"`
	IsLive                 bool           `json:"isLive"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

type InventoryItem struct {
	Tool           string `json:"tool"`
	Brand          string `json:"brand"`
	AvailableStock int    `json:"availableStock"`
	Sold           int    `json:"sold"`
}

type ClosedDealer struct {
	Serial       int       `json:"serial"`
	Date         string    `json:"date"` // DD/MM/YYYY
	DateValue    time.Time `json:"-"`
	DealerName   string    `json:"dealerName"`
	BusinessName string    `json:"businessName"`
	State        string    `json:"state"`
	City         string    `json:"city"`
}

type RosterSnapshot struct {
	Loading       bool            `json:"loading"`
	Error         *string         `json:"error"`
	Inventory     []InventoryItem `json:"inventory"`
	ClosedDealers []ClosedDealer  `json:"closedDealers"`
	FetchedAt     time.Time       `json:"fetchedAt"`
}

type View string

const (
	ViewFunnel        View = "FUNNEL"
	ViewInventory     View = "INVENTORY"
	ViewClosedDealers View = "CLOSED_DEALERS"
)

// Views en orden de rotación.
var Views = []View{ViewFunnel, ViewInventory, ViewClosedDealers}

func (v View) Next() View {
	for i, x := range Views {
		if x == v {
			return Views[(i+1)%len(Views)]
		}
	}
	return ViewFunnel
}

func (v View) Index() int {
	for i, x := range Views {
		if x == v {
			return i
		}
	}
	return 0
}

type RotationState struct {
	CurrentView     View          `json:"currentView"`
	NextSwitch      time.Time     `json:"nextSwitch"`
	FixedInterval   time.Duration `json:"-"`
	FixedIntervalMs int64         `json:"intervalMs"`
}

type Countdown struct {
	View        View    `json:"currentView"`
	RemainingMs int64   `json:"remainingMs"`
	Progress    float64 `json:"progress"`
	Label       string  `json:"label"` // MM:SS
	Page        string  `json:"page"`
}

type HeaderStats struct {
	OverallConversionRatio float64 `json:"conversion"`
	RemainingTarget        float64 `json:"target"`
	TotalStock             int     `json:"totalStock"`
	TotalSold              int     `json:"totalSold"`
	TotalClosedDealers     int     `json:"totalClosedDealers"`
	TodaysClosedDealers    int     `json:"todaysClosedDealers"`
}

type Dashboard struct {
	Rotation Countdown      `json:"rotation"`
	Header   HeaderStats    `json:"header"`
	Funnel   FunnelSnapshot `json:"funnel"`
	Roster   RosterSnapshot `json:"roster"`
	Ticker   []string       `json:"ticker"`
}
