package main

import (
	"github.com/AlessandroSilveira/PlanWriter-sub001/app"
)

func main() {
	app.New(nil).Run()
}
