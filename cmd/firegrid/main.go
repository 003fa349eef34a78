/*
Copyright © 2024 the ForestFireDatasetGenerator authors.
This file is part of ForestFireDatasetGenerator.

ForestFireDatasetGenerator is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ForestFireDatasetGenerator is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ForestFireDatasetGenerator.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command firegrid creates gridded daily wildfire datasets from climate
// reanalysis, terrain and historical fire records.
package main

import (
	"fmt"
	"os"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/firegridutil"
)

func main() {
	if err := firegridutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
