package cwidget

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ValueSlider is a slider with a bold caption that always shows the last
// value the slider reported.
type ValueSlider struct {
	widget.BaseWidget

	labelWidget  *widget.Label
	sliderWidget *widget.Slider

	LabelText string
	Format    string

	OnChanged func(float64)
}

// NewValueSlider builds a slider over [min, max]. The caption is rendered as
// "<label>: <value>" with value printed through format.
func NewValueSlider(label, format string, min, max, step, value float64, onChanged func(float64)) *ValueSlider {
	item := &ValueSlider{
		LabelText: label,
		Format:    format,
		OnChanged: onChanged,
	}

	item.labelWidget = widget.NewLabel(item.caption(value))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.sliderWidget = widget.NewSlider(min, max)
	item.sliderWidget.Step = step
	item.sliderWidget.SetValue(value)

	item.sliderWidget.OnChanged = item.changed

	item.ExtendBaseWidget(item)

	return item
}

func (item *ValueSlider) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.sliderWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *ValueSlider) changed(v float64) {
	if item.OnChanged != nil {
		item.OnChanged(v)
	}
	item.labelWidget.SetText(item.caption(v))
}

func (item *ValueSlider) caption(v float64) string {
	return fmt.Sprintf("%s: "+item.Format, item.LabelText, v)
}

// SetValue moves the slider and fires OnChanged once, like a user drag would.
func (item *ValueSlider) SetValue(v float64) {
	item.sliderWidget.OnChanged = nil
	item.sliderWidget.SetValue(v)
	item.sliderWidget.OnChanged = item.changed

	item.changed(item.sliderWidget.Value)
}

func (item *ValueSlider) Value() float64 {
	return item.sliderWidget.Value
}

func (item *ValueSlider) Text() string {
	return item.labelWidget.Text
}
