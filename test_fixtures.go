package main

// Test CSV content used by SetupTestStore. Headers are intentionally messy
// to exercise identifier cleaning.

const productsCSV = `Product Name,Units Sold,Unit Price,In Stock,2024 Revenue
Widget,120,9.99,true,1198.8
Gadget,75,24.5,false,1837.5
Doohickey,200,1.25,true,250.0
`

// peopleCSV has two headers that clean to the same identifier and more rows
// than the catalog samples.
const peopleCSV = `First Name,First-Name,Age,City
Alice,A,30,Denver
Bob,B,25,Austin
Carol,C,35,Denver
Dan,D,40,Boston
Eve,E,28,Denver
Fay,F,33,Austin
`
